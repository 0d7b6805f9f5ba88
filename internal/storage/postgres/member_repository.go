package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const memberColumns = `id, name, city, street, zipcode, version, created_at`

type memberRepository struct {
	conn conn
}

// Save обновляет участника с проверкой версии, а если записи нет, вставляет её.
func (r memberRepository) Save(ctx context.Context, member domain.Member) (domain.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if member.ID == "" {
		member.ID = uuid.NewString()
	} else {
		saved, ok, err := r.update(ctx, member)
		if err != nil || ok {
			return saved, err
		}
	}
	return r.insert(ctx, member)
}

func (r memberRepository) update(ctx context.Context, member domain.Member) (domain.Member, bool, error) {
	res, err := r.conn.q().ExecContext(ctx, `
		UPDATE members
		SET name = $1,
		    city = $2,
		    street = $3,
		    zipcode = $4,
		    version = version + 1
		WHERE id = $5
		  AND version = $6
	`,
		member.Name, member.Address.City, member.Address.Street, member.Address.Zipcode,
		member.ID, member.Version,
	)
	if err != nil {
		return domain.Member{}, false, mapMemberError("update member", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Member{}, false, domain.PersistenceError("rows affected", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, r.conn.q(), `SELECT 1 FROM members WHERE id = $1`, member.ID)
		if err != nil {
			return domain.Member{}, false, err
		}
		if exists {
			return domain.Member{}, false, domain.ErrVersionConflict
		}
		return domain.Member{}, false, nil
	}

	member.Version++
	return member, true, nil
}

func (r memberRepository) insert(ctx context.Context, member domain.Member) (domain.Member, error) {
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn.q().ExecContext(ctx, `
		INSERT INTO members (id, name, city, street, zipcode, version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		member.ID, member.Name, member.Address.City, member.Address.Street, member.Address.Zipcode,
		member.Version, member.CreatedAt,
	)
	if err != nil {
		return domain.Member{}, mapMemberError("insert member", err)
	}
	return member, nil
}

func (r memberRepository) FindOne(ctx context.Context, id string) (domain.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	member, err := scanMember(r.conn.q().QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Member{}, domain.ErrMemberNotFound
		}
		return domain.Member{}, domain.PersistenceError("select member", err)
	}
	return member, nil
}

func (r memberRepository) FindAll(ctx context.Context) ([]domain.Member, error) {
	return r.list(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at, id`)
}

func (r memberRepository) FindByName(ctx context.Context, name string) ([]domain.Member, error) {
	return r.list(ctx, `SELECT `+memberColumns+` FROM members WHERE name = $1 ORDER BY created_at, id`, name)
}

func (r memberRepository) FindByNameContaining(ctx context.Context, fragment string) ([]domain.Member, error) {
	return r.list(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE name LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, id
	`, escapeLike(fragment))
}

func (r memberRepository) list(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.conn.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.PersistenceError("list members", err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan member row", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate member rows", err)
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var m domain.Member
	if err := row.Scan(&m.ID, &m.Name, &m.Address.City, &m.Address.Street, &m.Address.Zipcode, &m.Version, &m.CreatedAt); err != nil {
		return domain.Member{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func mapMemberError(op string, err error) error {
	code, constraint := pgErrorCode(err)
	switch {
	case code == pgUniqueViolation && constraint == "members_name_key":
		return domain.ErrMemberNameTaken
	case code == pgUniqueViolation:
		return domain.ErrVersionConflict
	default:
		return domain.PersistenceError(op, err)
	}
}

func rowExists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, domain.PersistenceError("check row exists", err)
}

var _ domain.MemberRepository = memberRepository{}
