package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const itemColumns = `id, dtype, name, price, stock_quantity, author, isbn, artist, etc, director, actor, version, created_at`

type itemRepository struct {
	conn conn
}

// itemRow: плоское представление товара в single-table схеме с дискриминатором dtype.
type itemRow struct {
	kind            string
	author, isbn    sql.NullString
	artist, etc     sql.NullString
	director, actor sql.NullString
	quantity        int
	item            domain.Item
}

func newItemRow(item domain.Item) itemRow {
	row := itemRow{kind: string(item.Kind()), quantity: item.StockQuantity(), item: item}
	switch d := item.Details.(type) {
	case domain.Book:
		row.author, row.isbn = nullString(d.Author), nullString(d.ISBN)
	case domain.Album:
		row.artist, row.etc = nullString(d.Artist), nullString(d.Etc)
	case domain.Movie:
		row.director, row.actor = nullString(d.Director), nullString(d.Actor)
	}
	return row
}

func (row itemRow) toDomain() (domain.Item, error) {
	var details domain.ItemDetails
	switch domain.ItemKind(row.kind) {
	case domain.ItemKindBook:
		details = domain.Book{Author: row.author.String, ISBN: row.isbn.String}
	case domain.ItemKindAlbum:
		details = domain.Album{Artist: row.artist.String, Etc: row.etc.String}
	case domain.ItemKindMovie:
		details = domain.Movie{Director: row.director.String, Actor: row.actor.String}
	default:
		return domain.Item{}, fmt.Errorf("unknown item dtype %q", row.kind)
	}

	item, err := domain.NewItem(row.item.Name, row.item.Price, row.quantity, details)
	if err != nil {
		return domain.Item{}, err
	}
	item.ID = row.item.ID
	item.Version = row.item.Version
	item.CreatedAt = row.item.CreatedAt
	return item, nil
}

// Save обновляет товар с проверкой версии, а если записи нет, вставляет её.
// Нарушение CHECK (stock_quantity >= 0) транслируется в ErrInsufficientStock.
func (r itemRepository) Save(ctx context.Context, item domain.Item) (domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !item.Kind().Valid() {
		return domain.Item{}, domain.ErrItemKindRequired
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	} else {
		saved, ok, err := r.update(ctx, item)
		if err != nil || ok {
			return saved, err
		}
	}
	return r.insert(ctx, item)
}

func (r itemRepository) update(ctx context.Context, item domain.Item) (domain.Item, bool, error) {
	row := newItemRow(item)
	res, err := r.conn.q().ExecContext(ctx, `
		UPDATE items
		SET dtype = $1,
		    name = $2,
		    price = $3,
		    stock_quantity = $4,
		    author = $5,
		    isbn = $6,
		    artist = $7,
		    etc = $8,
		    director = $9,
		    actor = $10,
		    version = version + 1
		WHERE id = $11
		  AND version = $12
	`,
		row.kind, item.Name, item.Price, row.quantity,
		row.author, row.isbn, row.artist, row.etc, row.director, row.actor,
		item.ID, item.Version,
	)
	if err != nil {
		return domain.Item{}, false, mapItemError("update item", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Item{}, false, domain.PersistenceError("rows affected", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, r.conn.q(), `SELECT 1 FROM items WHERE id = $1`, item.ID)
		if err != nil {
			return domain.Item{}, false, err
		}
		if exists {
			return domain.Item{}, false, domain.ErrVersionConflict
		}
		return domain.Item{}, false, nil
	}

	item.Version++
	return item, true, nil
}

func (r itemRepository) insert(ctx context.Context, item domain.Item) (domain.Item, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	row := newItemRow(item)
	_, err := r.conn.q().ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		item.ID, row.kind, item.Name, item.Price, row.quantity,
		row.author, row.isbn, row.artist, row.etc, row.director, row.actor,
		item.Version, item.CreatedAt,
	)
	if err != nil {
		return domain.Item{}, mapItemError("insert item", err)
	}
	return item, nil
}

func (r itemRepository) FindOne(ctx context.Context, id string) (domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	item, err := scanItem(r.conn.q().QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, domain.PersistenceError("select item", err)
	}
	return item, nil
}

func (r itemRepository) FindAll(ctx context.Context) ([]domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.conn.q().QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, domain.PersistenceError("list items", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan item row", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("iterate item rows", err)
	}
	return items, nil
}

func scanItem(scanner rowScanner) (domain.Item, error) {
	var row itemRow
	if err := scanner.Scan(
		&row.item.ID, &row.kind, &row.item.Name, &row.item.Price, &row.quantity,
		&row.author, &row.isbn, &row.artist, &row.etc, &row.director, &row.actor,
		&row.item.Version, &row.item.CreatedAt,
	); err != nil {
		return domain.Item{}, err
	}
	row.item.CreatedAt = row.item.CreatedAt.UTC()
	return row.toDomain()
}

func mapItemError(op string, err error) error {
	code, _ := pgErrorCode(err)
	switch code {
	case pgCheckViolation:
		return domain.ErrInsufficientStock
	case pgUniqueViolation:
		return domain.ErrVersionConflict
	default:
		return domain.PersistenceError(op, err)
	}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

var _ domain.ItemRepository = itemRepository{}
