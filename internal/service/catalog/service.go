// Package catalog реализует регистрацию товаров и управление остатками.
package catalog

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// RegisterRequest: данные нового товара.
type RegisterRequest struct {
	Name          string
	Price         int64
	StockQuantity int
	Details       domain.ItemDetails
}

// UpdateRequest: изменяемые атрибуты товара. Остаток меняется только через Restock и заказы.
type UpdateRequest struct {
	Name  string
	Price int64
}

// Service выполняет use case каталога.
type Service struct {
	gateway domain.Gateway
	logger  *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(gateway domain.Gateway, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &Service{gateway: gateway, logger: logger}
}

// Register добавляет товар в каталог с начальным остатком.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.Item, error) {
	item, err := domain.NewItem(strings.TrimSpace(req.Name), req.Price, req.StockQuantity, req.Details)
	if err != nil {
		return domain.Item{}, err
	}
	if err := errors.Join(item.Validate()...); err != nil {
		return domain.Item{}, err
	}

	saved, err := s.gateway.Items().Save(ctx, item)
	if err != nil {
		s.logger.WithError(err).WithField("name", item.Name).Warn("item registration failed")
		return domain.Item{}, err
	}

	s.logger.WithFields(log.Fields{
		"item_id": saved.ID,
		"kind":    string(saved.Kind()),
		"stock":   saved.StockQuantity(),
	}).Info("item registered")
	return saved, nil
}

// FindItems возвращает все товары каталога.
func (s *Service) FindItems(ctx context.Context) ([]domain.Item, error) {
	return s.gateway.Items().FindAll(ctx)
}

// FindOne возвращает товар по идентификатору.
func (s *Service) FindOne(ctx context.Context, id string) (domain.Item, error) {
	return s.gateway.Items().FindOne(ctx, id)
}

// Update меняет название и цену товара. Оформленные заказы сохраняют прежнюю цену.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (domain.Item, error) {
	return s.modify(ctx, id, "update", func(item *domain.Item) error {
		item.Name = strings.TrimSpace(req.Name)
		item.Price = req.Price
		return errors.Join(item.Validate()...)
	})
}

// Restock возвращает quantity единиц на склад.
func (s *Service) Restock(ctx context.Context, id string, quantity int) (domain.Item, error) {
	return s.modify(ctx, id, "restock", func(item *domain.Item) error {
		return item.AddStock(quantity)
	})
}

func (s *Service) modify(ctx context.Context, id, operation string, change func(*domain.Item) error) (domain.Item, error) {
	var updated domain.Item
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		item, err := repos.Items().FindOne(ctx, id)
		if err != nil {
			return err
		}
		if err := change(&item); err != nil {
			return err
		}
		saved, err := repos.Items().Save(ctx, item)
		if err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"item_id":   id,
			"operation": operation,
		}).Warn("item change rejected")
		return domain.Item{}, err
	}

	s.logger.WithFields(log.Fields{
		"item_id":   updated.ID,
		"operation": operation,
		"stock":     updated.StockQuantity(),
	}).Info("item changed")
	return updated, nil
}
