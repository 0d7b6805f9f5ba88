package ordercorev1

import "time"

// Статусы заказа в API совпадают с доменными.
const (
	OrderStatusOrdered   = "ORDERED"
	OrderStatusCancelled = "CANCELLED"
)

type Address struct {
	City    string `json:"city,omitempty"`
	Street  string `json:"street,omitempty"`
	Zipcode string `json:"zipcode,omitempty"`
}

type Member struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Address   *Address  `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Book struct {
	Author string `json:"author,omitempty"`
	Isbn   string `json:"isbn,omitempty"`
}

type Album struct {
	Artist string `json:"artist,omitempty"`
	Etc    string `json:"etc,omitempty"`
}

type Movie struct {
	Director string `json:"director,omitempty"`
	Actor    string `json:"actor,omitempty"`
}

// Item: товар каталога. Заполнено ровно одно из полей Book, Album, Movie.
type Item struct {
	Id            string `json:"id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Price         int64  `json:"price"`
	StockQuantity int32  `json:"stock_quantity"`
	Book          *Book  `json:"book,omitempty"`
	Album         *Album `json:"album,omitempty"`
	Movie         *Movie `json:"movie,omitempty"`
}

type OrderLine struct {
	Id         string `json:"id"`
	ItemId     string `json:"item_id"`
	OrderPrice int64  `json:"order_price"`
	Count      int32  `json:"count"`
	TotalPrice int64  `json:"total_price"`
}

type Delivery struct {
	Id      string   `json:"id"`
	Address *Address `json:"address,omitempty"`
	Status  string   `json:"status"`
}

type Order struct {
	Id         string       `json:"id"`
	MemberId   string       `json:"member_id"`
	OrderDate  time.Time    `json:"order_date"`
	Status     string       `json:"status"`
	Lines      []*OrderLine `json:"lines"`
	Delivery   *Delivery    `json:"delivery,omitempty"`
	TotalPrice int64        `json:"total_price"`
}

type RegisterMemberRequest struct {
	Name    string   `json:"name"`
	Address *Address `json:"address,omitempty"`
}

type RegisterMemberResponse struct {
	Member *Member `json:"member"`
}

func (x *RegisterMemberResponse) GetMember() *Member {
	if x == nil {
		return nil
	}
	return x.Member
}

// ListMembersRequest: пустой NameContains возвращает всех участников.
type ListMembersRequest struct {
	NameContains string `json:"name_contains,omitempty"`
}

type ListMembersResponse struct {
	Members []*Member `json:"members"`
}

type RegisterItemRequest struct {
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int32  `json:"stock_quantity"`
	Book          *Book  `json:"book,omitempty"`
	Album         *Album `json:"album,omitempty"`
	Movie         *Movie `json:"movie,omitempty"`
}

type RegisterItemResponse struct {
	Item *Item `json:"item"`
}

func (x *RegisterItemResponse) GetItem() *Item {
	if x == nil {
		return nil
	}
	return x.Item
}

type ListItemsRequest struct{}

type ListItemsResponse struct {
	Items []*Item `json:"items"`
}

type OrderLineRequest struct {
	ItemId string `json:"item_id"`
	Count  int32  `json:"count"`
}

type PlaceOrderRequest struct {
	MemberId string              `json:"member_id"`
	Lines    []*OrderLineRequest `json:"lines"`
}

type PlaceOrderResponse struct {
	OrderId string `json:"order_id"`
}

type CancelOrderRequest struct {
	OrderId string `json:"order_id"`
}

type CancelOrderResponse struct {
	OrderId string `json:"order_id"`
	Status  string `json:"status"`
}

type GetOrderRequest struct {
	OrderId string `json:"order_id"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

// SearchOrdersRequest: пустые поля означают отсутствие фильтра.
type SearchOrdersRequest struct {
	OrderStatus string `json:"order_status,omitempty"`
	MemberName  string `json:"member_name,omitempty"`
}

type SearchOrdersResponse struct {
	Orders []*Order `json:"orders"`
}
