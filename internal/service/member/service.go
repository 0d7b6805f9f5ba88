// Package member реализует регистрацию и сопровождение участников.
package member

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// JoinRequest: данные для регистрации участника.
type JoinRequest struct {
	Name    string
	Address domain.Address
}

// Service выполняет use case участников.
type Service struct {
	gateway domain.Gateway
	logger  *log.Entry
}

// NewService создаёт сервис участников.
func NewService(gateway domain.Gateway, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "member-service")
	}
	return &Service{gateway: gateway, logger: logger}
}

// Join регистрирует участника. Имя должно быть уникальным: проверка выполняется
// внутри транзакции, а гонку двух регистраций закрывает уникальный индекс хранилища.
func (s *Service) Join(ctx context.Context, req JoinRequest) (domain.Member, error) {
	candidate := domain.Member{
		Name:    strings.TrimSpace(req.Name),
		Address: req.Address,
	}
	if err := errors.Join(candidate.Validate()...); err != nil {
		return domain.Member{}, err
	}

	var joined domain.Member
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if err := ensureNameFree(ctx, repos.Members(), candidate.Name, ""); err != nil {
			return err
		}
		saved, err := repos.Members().Save(ctx, candidate)
		if err != nil {
			return err
		}
		joined = saved
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("name", candidate.Name).Warn("member join rejected")
		return domain.Member{}, err
	}

	s.logger.WithField("member_id", joined.ID).Info("member joined")
	return joined, nil
}

// FindMembers возвращает всех участников.
func (s *Service) FindMembers(ctx context.Context) ([]domain.Member, error) {
	return s.gateway.Members().FindAll(ctx)
}

// FindOne возвращает участника по идентификатору.
func (s *Service) FindOne(ctx context.Context, id string) (domain.Member, error) {
	return s.gateway.Members().FindOne(ctx, id)
}

// SearchByName ищет участников по фрагменту имени (с учётом регистра).
func (s *Service) SearchByName(ctx context.Context, fragment string) ([]domain.Member, error) {
	return s.gateway.Members().FindByNameContaining(ctx, fragment)
}

// Update переименовывает участника.
func (s *Service) Update(ctx context.Context, id, name string) (domain.Member, error) {
	var updated domain.Member
	err := s.gateway.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		member, err := repos.Members().FindOne(ctx, id)
		if err != nil {
			return err
		}
		if err := member.Rename(name); err != nil {
			return err
		}
		if err := ensureNameFree(ctx, repos.Members(), member.Name, member.ID); err != nil {
			return err
		}
		saved, err := repos.Members().Save(ctx, member)
		if err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("member_id", id).Warn("member update rejected")
		return domain.Member{}, err
	}

	s.logger.WithField("member_id", updated.ID).Info("member renamed")
	return updated, nil
}

func ensureNameFree(ctx context.Context, repo domain.MemberRepository, name, selfID string) error {
	existing, err := repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	for _, member := range existing {
		if member.ID != selfID {
			return domain.ErrMemberNameTaken
		}
	}
	return nil
}
