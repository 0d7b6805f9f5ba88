package grpcsvc

import (
	"errors"

	ordercorev1 "github.com/vladislavdragonenkov/ordercore/api/ordercore/v1"
	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

var errAmbiguousDetails = errors.New("exactly one of book, album, movie is required")

func fromAPIAddress(address *ordercorev1.Address) domain.Address {
	if address == nil {
		return domain.Address{}
	}
	return domain.Address{
		City:    address.City,
		Street:  address.Street,
		Zipcode: address.Zipcode,
	}
}

func toAPIAddress(address domain.Address) *ordercorev1.Address {
	if address == (domain.Address{}) {
		return nil
	}
	return &ordercorev1.Address{
		City:    address.City,
		Street:  address.Street,
		Zipcode: address.Zipcode,
	}
}

func toAPIMember(m domain.Member) *ordercorev1.Member {
	return &ordercorev1.Member{
		Id:        m.ID,
		Name:      m.Name,
		Address:   toAPIAddress(m.Address),
		CreatedAt: m.CreatedAt,
	}
}

func fromAPIDetails(req *ordercorev1.RegisterItemRequest) (domain.ItemDetails, error) {
	var (
		details domain.ItemDetails
		set     int
	)
	if req.Book != nil {
		details = domain.Book{Author: req.Book.Author, ISBN: req.Book.Isbn}
		set++
	}
	if req.Album != nil {
		details = domain.Album{Artist: req.Album.Artist, Etc: req.Album.Etc}
		set++
	}
	if req.Movie != nil {
		details = domain.Movie{Director: req.Movie.Director, Actor: req.Movie.Actor}
		set++
	}
	if set != 1 {
		return nil, errAmbiguousDetails
	}
	return details, nil
}

func toAPIItem(item domain.Item) *ordercorev1.Item {
	out := &ordercorev1.Item{
		Id:            item.ID,
		Name:          item.Name,
		Kind:          string(item.Kind()),
		Price:         item.Price,
		StockQuantity: int32(item.StockQuantity()), //nolint:gosec // остаток ограничен типом int32 API.
	}
	switch details := item.Details.(type) {
	case domain.Book:
		out.Book = &ordercorev1.Book{Author: details.Author, Isbn: details.ISBN}
	case domain.Album:
		out.Album = &ordercorev1.Album{Artist: details.Artist, Etc: details.Etc}
	case domain.Movie:
		out.Movie = &ordercorev1.Movie{Director: details.Director, Actor: details.Actor}
	}
	return out
}

func toAPIOrder(order domain.Order) *ordercorev1.Order {
	lines := make([]*ordercorev1.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, &ordercorev1.OrderLine{
			Id:         line.ID,
			ItemId:     line.ItemID,
			OrderPrice: line.OrderPrice,
			Count:      int32(line.Count), //nolint:gosec // количество ограничено типом int32 API.
			TotalPrice: line.TotalPrice(),
		})
	}

	return &ordercorev1.Order{
		Id:        order.ID,
		MemberId:  order.MemberID,
		OrderDate: order.OrderDate,
		Status:    string(order.Status),
		Lines:     lines,
		Delivery: &ordercorev1.Delivery{
			Id:      order.Delivery.ID,
			Address: toAPIAddress(order.Delivery.Address),
			Status:  string(order.Delivery.Status),
		},
		TotalPrice: order.TotalPrice(),
	}
}
