package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type docKey struct {
	table string
	id    string
}

type pending struct {
	rec    Record
	delete bool
}

// Tx buffers writes and tracks read versions for one attempt.
type Tx struct {
	s      *Store
	now    time.Time
	reads  map[docKey]int64
	writes map[docKey]*pending
	order  []docKey
}

func newTx(s *Store) *Tx {
	return &Tx{
		s:      s,
		now:    s.Now(),
		reads:  make(map[docKey]int64),
		writes: make(map[docKey]*pending),
	}
}

// Now is fixed for the attempt, so every timestamp written by one
// attempt is identical.
func (t *Tx) Now() time.Time { return t.now }

// Get loads the document whose id is set on rec and reports whether it
// exists. Writes buffered earlier in the same transaction are visible.
func (t *Tx) Get(ctx context.Context, rec Record) (bool, error) {
	k, err := keyOf(rec)
	if err != nil {
		return false, err
	}

	if p, ok := t.writes[k]; ok {
		if p.delete {
			return false, nil
		}
		if err := copyRecord(rec, p.rec); err != nil {
			return false, err
		}
		return true, nil
	}

	var version int64
	found := true
	err = t.s.db.WithContext(ctx).Take(rec, "id = ?", k.id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		found = false
	case err != nil:
		return false, fmt.Errorf("get %s/%s: %w", k.table, k.id, err)
	default:
		version = rec.DocVersion()
	}

	if prev, seen := t.reads[k]; seen && prev != version {
		return false, errStale
	}
	t.reads[k] = version
	return found, nil
}

// Set creates or overwrites the document.
func (t *Tx) Set(rec Record) error {
	return t.buffer(rec, false)
}

// Delete removes the document. Deleting an absent document is a no-op.
func (t *Tx) Delete(rec Record) error {
	return t.buffer(rec, true)
}

func (t *Tx) buffer(rec Record, del bool) error {
	k, err := keyOf(rec)
	if err != nil {
		return err
	}
	if _, ok := t.writes[k]; !ok {
		t.order = append(t.order, k)
	}
	t.writes[k] = &pending{rec: rec, delete: del}
	return nil
}

func (t *Tx) commit(ctx context.Context) ([]Change, error) {
	if len(t.writes) == 0 && len(t.reads) == 0 {
		return nil, nil
	}

	var changes []Change
	err := t.s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		for k, v := range t.reads {
			if _, written := t.writes[k]; written {
				continue
			}
			if err := verify(db, k, v); err != nil {
				return err
			}
		}

		for _, k := range t.order {
			read, wasRead := t.reads[k]
			if !wasRead {
				current, err := currentVersion(db, k)
				if err != nil {
					return err
				}
				read = current
			}
			ch, err := apply(db, k, t.writes[k], read)
			if err != nil {
				return err
			}
			if ch != nil {
				changes = append(changes, *ch)
			}
		}
		return nil
	})
	if err != nil {
		if retryable(err) {
			return nil, errStale
		}
		return nil, err
	}
	return changes, nil
}

// apply writes one buffered document conditioned on the version it was read at.
func apply(db *gorm.DB, k docKey, p *pending, read int64) (*Change, error) {
	if p.delete {
		if read == 0 {
			return nil, verify(db, k, 0)
		}
		res := db.Where("version = ?", read).Delete(p.rec)
		if res.Error != nil {
			return nil, fmt.Errorf("delete %s/%s: %w", k.table, k.id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, errStale
		}
		return &Change{Collection: k.table, ID: k.id, Op: OpDeleted, Doc: p.rec}, nil
	}

	if read == 0 {
		if err := verify(db, k, 0); err != nil {
			return nil, err
		}
		p.rec.SetDocVersion(1)
		if err := db.Create(p.rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, errStale
			}
			return nil, fmt.Errorf("create %s/%s: %w", k.table, k.id, err)
		}
		return &Change{Collection: k.table, ID: k.id, Op: OpCreated, Doc: p.rec}, nil
	}

	p.rec.SetDocVersion(read + 1)
	res := db.Model(p.rec).Select("*").Where("version = ?", read).Updates(p.rec)
	if res.Error != nil {
		return nil, fmt.Errorf("update %s/%s: %w", k.table, k.id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errStale
	}
	return &Change{Collection: k.table, ID: k.id, Op: OpUpdated, Doc: p.rec}, nil
}

func verify(db *gorm.DB, k docKey, want int64) error {
	current, err := currentVersion(db, k)
	if err != nil {
		return err
	}
	if current != want {
		return errStale
	}
	return nil
}

// currentVersion locks the row where the dialect supports it. 0 means absent.
func currentVersion(db *gorm.DB, k docKey) (int64, error) {
	var versions []int64
	err := db.Table(k.table).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", k.id).
		Pluck("version", &versions).Error
	if err != nil {
		return 0, fmt.Errorf("read version %s/%s: %w", k.table, k.id, err)
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[0], nil
}

func keyOf(rec Record) (docKey, error) {
	if rec == nil || rec.DocID() == "" {
		return docKey{}, errors.New("store: document id is required")
	}
	return docKey{table: rec.TableName(), id: rec.DocID()}, nil
}

func copyRecord(dst, src Record) error {
	dv, sv := reflect.ValueOf(dst), reflect.ValueOf(src)
	if dv.Type() != sv.Type() || dv.Kind() != reflect.Pointer {
		return fmt.Errorf("store: cannot read %T into %T", src, dst)
	}
	dv.Elem().Set(sv.Elem())
	return nil
}

// retryable reports lock conflicts that InnoDB resolves by killing one of
// the competing transactions. Those are retried like a stale read.
func retryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}
