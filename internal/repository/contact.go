package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	entschema "github.com/joseph-ayodele/cardscan/db/ent/schema"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// ContactRepository is the record store for ContactRecords.
type ContactRepository interface {
	// Insert stores one record and returns it with its store id and creation time.
	Insert(ctx context.Context, rec entity.ContactRecord) (entity.ContactRecord, error)
	// InsertMany stores every record in one statement; either all rows are written or none.
	InsertMany(ctx context.Context, recs []entity.ContactRecord) ([]entity.ContactRecord, error)
	// UpdateFields patches the named columns of one record. A nil value clears the column.
	UpdateFields(ctx context.Context, id uuid.UUID, patch map[entity.ContactField]*string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteAll removes every record and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
	Get(ctx context.Context, id uuid.UUID) (entity.ContactRecord, error)
	// ListAll returns every record, newest first.
	ListAll(ctx context.Context) ([]entity.ContactRecord, error)
}

var contactColumns = []string{
	"id", "full_name", "first_name", "last_name", "email", "phone", "company", "title", "website",
	"address", "notes", "user_notes", "poc_name", "source_filename", "confidence_score", "created_at",
}

type contactRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*contactRepository)

// WithClock overrides the creation-time source.
func WithClock(now func() time.Time) Option {
	return func(r *contactRepository) { r.now = now }
}

func NewContactRepository(drv *entsql.Driver, logger *slog.Logger, opts ...Option) ContactRepository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &contactRepository{
		drv:    drv,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *contactRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *contactRepository) Insert(ctx context.Context, rec entity.ContactRecord) (entity.ContactRecord, error) {
	out, err := r.InsertMany(ctx, []entity.ContactRecord{rec})
	if err != nil {
		return entity.ContactRecord{}, err
	}
	return out[0], nil
}

func (r *contactRepository) InsertMany(ctx context.Context, recs []entity.ContactRecord) ([]entity.ContactRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	b := r.builder().Insert(entschema.ContactsTable).Columns(contactColumns...)
	out := make([]entity.ContactRecord, len(recs))
	for i, rec := range recs {
		rec.StoreID = uuid.New()
		rec.CreatedAt = r.now().UTC()
		b.Values(
			rec.StoreID, nullable(rec.FullName), nullable(rec.FirstName), nullable(rec.LastName),
			nullable(rec.Email), nullable(rec.Phone), nullable(rec.Company), nullable(rec.Title),
			nullable(rec.Website), nullable(rec.Address), nullable(rec.Notes), nullable(rec.UserNotes),
			nullable(rec.POCName), nullable(rec.SourceFilename), rec.ConfidenceScore, rec.CreatedAt,
		)
		out[i] = rec
	}

	query, args := b.Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to insert contacts", "count", len(recs), "error", err)
		return nil, fmt.Errorf("%w: insert contacts: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *contactRepository) UpdateFields(ctx context.Context, id uuid.UUID, patch map[entity.ContactField]*string) error {
	if len(patch) == 0 {
		return fmt.Errorf("%w: empty patch", common.ErrInvalidInput)
	}
	u := r.builder().Update(entschema.ContactsTable)
	for f, v := range patch {
		if !entity.IsEditable(f) {
			return fmt.Errorf("%w: field %q is not editable", common.ErrInvalidInput, f)
		}
		u.Set(string(f), nullable(v))
	}
	query, args := u.Where(entsql.EQ("id", id)).Query()
	if err := r.execAffecting(ctx, query, args); err != nil {
		r.logger.Error("failed to update contact", "store_id", id, "error", err)
		return err
	}
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args := r.builder().Delete(entschema.ContactsTable).Where(entsql.EQ("id", id)).Query()
	if err := r.execAffecting(ctx, query, args); err != nil {
		r.logger.Error("failed to delete contact", "store_id", id, "error", err)
		return err
	}
	return nil
}

func (r *contactRepository) DeleteAll(ctx context.Context) (int64, error) {
	query, args := r.builder().Delete(entschema.ContactsTable).Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to delete all contacts", "error", err)
		return 0, fmt.Errorf("%w: delete all contacts: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return n, nil
}

func (r *contactRepository) Get(ctx context.Context, id uuid.UUID) (entity.ContactRecord, error) {
	sel := r.builder().Select(contactColumns...).
		From(r.builder().Table(entschema.ContactsTable)).
		Where(entsql.EQ("id", id))
	recs, err := r.query(ctx, sel)
	if err != nil {
		return entity.ContactRecord{}, err
	}
	if len(recs) == 0 {
		return entity.ContactRecord{}, fmt.Errorf("contact %s: %w", id, common.ErrNotFound)
	}
	return recs[0], nil
}

func (r *contactRepository) ListAll(ctx context.Context) ([]entity.ContactRecord, error) {
	sel := r.builder().Select(contactColumns...).
		From(r.builder().Table(entschema.ContactsTable)).
		OrderBy(entsql.Desc("created_at"))
	recs, err := r.query(ctx, sel)
	if err != nil {
		r.logger.Error("failed to list contacts", "error", err)
		return nil, err
	}
	return recs, nil
}

// execAffecting runs a write that must touch at least one row.
func (r *contactRepository) execAffecting(ctx context.Context, query string, args []any) error {
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *contactRepository) query(ctx context.Context, sel *entsql.Selector) ([]entity.ContactRecord, error) {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.ContactRecord
	for rows.Next() {
		rec, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan contact: %v", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanContact(rows *entsql.Rows) (entity.ContactRecord, error) {
	var (
		rec  entity.ContactRecord
		strs [13]sql.NullString
	)
	dest := []any{&rec.StoreID}
	for i := range strs {
		dest = append(dest, &strs[i])
	}
	dest = append(dest, &rec.ConfidenceScore, &rec.CreatedAt)
	if err := rows.Scan(dest...); err != nil {
		return rec, err
	}

	targets := []**string{
		&rec.FullName, &rec.FirstName, &rec.LastName, &rec.Email, &rec.Phone, &rec.Company, &rec.Title,
		&rec.Website, &rec.Address, &rec.Notes, &rec.UserNotes, &rec.POCName, &rec.SourceFilename,
	}
	for i, t := range targets {
		if strs[i].Valid {
			v := strs[i].String
			*t = &v
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
