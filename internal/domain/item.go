package domain

import (
	"strings"
	"time"
)

// Stock: складской остаток товара. Количество меняется только через Increase/Decrease,
// поэтому отрицательный остаток не может появиться ни в одном достижимом состоянии.
type Stock struct {
	quantity int
}

// NewStock создаёт остаток с заданным количеством (при загрузке из хранилища или регистрации товара).
func NewStock(quantity int) (Stock, error) {
	if quantity < 0 {
		return Stock{}, ErrStockNegative
	}
	return Stock{quantity: quantity}, nil
}

// Quantity возвращает текущий остаток.
func (s Stock) Quantity() int {
	return s.quantity
}

// Increase возвращает amount единиц на склад.
func (s *Stock) Increase(amount int) error {
	if amount <= 0 {
		return ErrQuantityInvalid
	}
	s.quantity += amount
	return nil
}

// Decrease списывает amount единиц. При нехватке остаток не меняется.
func (s *Stock) Decrease(amount int) error {
	if amount <= 0 {
		return ErrQuantityInvalid
	}
	rest := s.quantity - amount
	if rest < 0 {
		return ErrInsufficientStock
	}
	s.quantity = rest
	return nil
}

// ItemKind: дискриминатор вида товара, хранится в колонке dtype.
type ItemKind string

const (
	ItemKindBook  ItemKind = "B"
	ItemKindAlbum ItemKind = "A"
	ItemKindMovie ItemKind = "M"
)

// Valid проверяет, что вид товара поддерживается.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindBook, ItemKindAlbum, ItemKindMovie:
		return true
	default:
		return false
	}
}

// ItemDetails: атрибуты конкретного вида товара. Реализации: Book, Album, Movie.
type ItemDetails interface {
	Kind() ItemKind
	isItemDetails()
}

// Book: книга.
type Book struct {
	Author string
	ISBN   string
}

// Album: музыкальный альбом.
type Album struct {
	Artist string
	Etc    string
}

// Movie: фильм.
type Movie struct {
	Director string
	Actor    string
}

func (Book) Kind() ItemKind  { return ItemKindBook }
func (Album) Kind() ItemKind { return ItemKindAlbum }
func (Movie) Kind() ItemKind { return ItemKindMovie }

func (Book) isItemDetails()  {}
func (Album) isItemDetails() {}
func (Movie) isItemDetails() {}

// Item: товар каталога с ценой и складским остатком.
// Остаток меняется только через AddStock/RemoveStock.
type Item struct {
	ID      string
	Name    string
	Price   int64
	stock   Stock
	Details ItemDetails
	// Version используется для optimistic locking при сохранении.
	Version   int64
	CreatedAt time.Time
}

// NewItem собирает товар с начальным остатком quantity.
// Используется при регистрации товара и при загрузке из хранилища.
func NewItem(name string, price int64, quantity int, details ItemDetails) (Item, error) {
	stock, err := NewStock(quantity)
	if err != nil {
		return Item{}, err
	}
	return Item{Name: name, Price: price, stock: stock, Details: details}, nil
}

// Kind возвращает вид товара по его атрибутам.
func (i *Item) Kind() ItemKind {
	if i.Details == nil {
		return ""
	}
	return i.Details.Kind()
}

// StockQuantity возвращает текущий остаток.
func (i *Item) StockQuantity() int {
	return i.stock.Quantity()
}

// AddStock возвращает товар на склад.
func (i *Item) AddStock(quantity int) error {
	return i.stock.Increase(quantity)
}

// RemoveStock списывает товар со склада.
func (i *Item) RemoveStock(quantity int) error {
	return i.stock.Decrease(quantity)
}

// Validate проверяет инварианты товара и возвращает список замечаний.
func (i *Item) Validate() []error {
	var errs []error

	if strings.TrimSpace(i.Name) == "" {
		errs = append(errs, ErrItemNameRequired)
	}
	if i.Price < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if !i.Kind().Valid() {
		errs = append(errs, ErrItemKindRequired)
	}
	if i.stock.Quantity() < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
