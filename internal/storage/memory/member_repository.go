package memory

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

var memberAccessors = accessors[domain.Member]{
	id:      func(m domain.Member) string { return m.ID },
	version: func(m domain.Member) int64 { return m.Version },
	withID: func(m domain.Member, id string) domain.Member {
		m.ID = id
		return m
	},
	withVersion: func(m domain.Member, v int64) domain.Member {
		m.Version = v
		return m
	},
}

type memberRepository struct {
	store *Store
	tx    *txn
}

func (r memberRepository) staged() map[string]*entry[domain.Member] {
	if r.tx == nil {
		return nil
	}
	return r.tx.members
}

// Save вставляет или обновляет участника. Уникальность имени проверяется при фиксации.
func (r memberRepository) Save(ctx context.Context, member domain.Member) (domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return domain.Member{}, err
	}
	return autocommit(r.store, r.tx, func(tx *txn) (domain.Member, error) {
		return stage(&r.store.mu, r.store.members, tx.members, memberAccessors, member)
	})
}

func (r memberRepository) FindOne(ctx context.Context, id string) (domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return domain.Member{}, err
	}
	member, ok := lookup(&r.store.mu, r.store.members, r.staged(), id)
	if !ok {
		return domain.Member{}, domain.ErrMemberNotFound
	}
	return member, nil
}

func (r memberRepository) FindAll(ctx context.Context) ([]domain.Member, error) {
	return r.filter(ctx, func(domain.Member) bool { return true })
}

func (r memberRepository) FindByName(ctx context.Context, name string) ([]domain.Member, error) {
	return r.filter(ctx, func(m domain.Member) bool { return m.Name == name })
}

func (r memberRepository) FindByNameContaining(ctx context.Context, fragment string) ([]domain.Member, error) {
	return r.filter(ctx, func(m domain.Member) bool { return strings.Contains(m.Name, fragment) })
}

func (r memberRepository) filter(ctx context.Context, keep func(domain.Member) bool) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := snapshot(&r.store.mu, r.store.members, r.staged())
	result := make([]domain.Member, 0, len(all))
	for _, member := range all {
		if keep(member) {
			result = append(result, member)
		}
	}
	return result, nil
}

var _ domain.MemberRepository = memberRepository{}
