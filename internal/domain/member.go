package domain

import (
	"strings"
	"time"
)

// Address: почтовый адрес участника; копируется в доставку на момент заказа.
type Address struct {
	City    string
	Street  string
	Zipcode string
}

// Member: зарегистрированный покупатель.
type Member struct {
	ID        string
	Name      string
	Address   Address
	Version   int64
	CreatedAt time.Time
}

// Rename меняет имя участника.
func (m *Member) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMemberNameRequired
	}
	m.Name = name
	return nil
}

// Validate проверяет базовые инварианты участника.
func (m *Member) Validate() []error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, ErrMemberNameRequired)
	}
	return errs
}
