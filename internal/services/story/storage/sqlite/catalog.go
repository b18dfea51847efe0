package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

var bonusColumns = []struct {
	column string
	attr   profile.Attribute
}{
	{"strength_bonus", profile.Strength},
	{"dexterity_bonus", profile.Dexterity},
	{"constitution_bonus", profile.Constitution},
	{"intelligence_bonus", profile.Intelligence},
	{"wisdom_bonus", profile.Wisdom},
	{"charisma_bonus", profile.Charisma},
}

// CreateClass inserts a class with its outfits and equipment.
func (q *queries) CreateClass(ctx context.Context, class storage.Class) (storage.Class, error) {
	if err := q.ready(ctx); err != nil {
		return storage.Class{}, err
	}
	name := strings.TrimSpace(class.Name)
	if name == "" {
		return storage.Class{}, fmt.Errorf("class name is required")
	}

	columns := []string{"name", "description"}
	args := []any{name, strings.TrimSpace(class.Description)}
	for _, bonus := range bonusColumns {
		columns = append(columns, bonus.column)
		args = append(args, class.Bonuses[bonus.attr])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO classes (`+strings.Join(columns, ", ")+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Class{}, storage.ErrAlreadyExists
		}
		return storage.Class{}, fmt.Errorf("create class: %w", err)
	}
	classID, err := res.LastInsertId()
	if err != nil {
		return storage.Class{}, fmt.Errorf("create class id: %w", err)
	}

	for i, o := range class.Outfits {
		description := strings.TrimSpace(o.Description)
		if description == "" {
			return storage.Class{}, fmt.Errorf("outfit %d description is required", i)
		}
		if o.Weight < 0 {
			return storage.Class{}, fmt.Errorf("outfit %d weight must not be negative", i)
		}
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO class_outfits (class_id, description, weight) VALUES (?, ?, ?)`,
			classID, description, o.Weight,
		); err != nil {
			return storage.Class{}, fmt.Errorf("create outfit %d: %w", i, err)
		}
	}
	for i, item := range class.Equipment {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO class_starting_equipment (class_id, position, description) VALUES (?, ?, ?)`,
			classID, i, item,
		); err != nil {
			return storage.Class{}, fmt.Errorf("create equipment %d: %w", i, err)
		}
	}
	return q.GetClass(ctx, classID)
}

// GetClass returns a class with its outfits and equipment.
func (q *queries) GetClass(ctx context.Context, classID int64) (storage.Class, error) {
	if err := q.ready(ctx); err != nil {
		return storage.Class{}, err
	}
	class := storage.Class{Bonuses: make(map[profile.Attribute]int, len(bonusColumns))}
	values := make([]int, len(bonusColumns))
	columns := make([]string, len(bonusColumns))
	dest := []any{&class.ID, &class.Name, &class.Description}
	for i, bonus := range bonusColumns {
		columns[i] = bonus.column
		dest = append(dest, &values[i])
	}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, description, `+strings.Join(columns, ", ")+` FROM classes WHERE id = ?`, classID,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Class{}, storage.ErrNotFound
		}
		return storage.Class{}, fmt.Errorf("get class %d: %w", classID, err)
	}
	for i, bonus := range bonusColumns {
		if values[i] != 0 {
			class.Bonuses[bonus.attr] = values[i]
		}
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT id, class_id, description, weight FROM class_outfits WHERE class_id = ? ORDER BY id`, classID)
	if err != nil {
		return storage.Class{}, fmt.Errorf("list outfits for class %d: %w", classID, err)
	}
	for rows.Next() {
		var o storage.Outfit
		if err := rows.Scan(&o.ID, &o.ClassID, &o.Description, &o.Weight); err != nil {
			_ = rows.Close()
			return storage.Class{}, fmt.Errorf("scan outfit: %w", err)
		}
		class.Outfits = append(class.Outfits, o)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return storage.Class{}, fmt.Errorf("iterate outfits: %w", err)
	}
	_ = rows.Close()

	rows, err = q.db.QueryContext(ctx,
		`SELECT description FROM class_starting_equipment WHERE class_id = ? ORDER BY position`, classID)
	if err != nil {
		return storage.Class{}, fmt.Errorf("list equipment for class %d: %w", classID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return storage.Class{}, fmt.Errorf("scan equipment: %w", err)
		}
		class.Equipment = append(class.Equipment, item)
	}
	if err := rows.Err(); err != nil {
		return storage.Class{}, fmt.Errorf("iterate equipment: %w", err)
	}
	return class, nil
}

// CountClasses returns the number of stored classes.
func (q *queries) CountClasses(ctx context.Context) (int, error) {
	if err := q.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// ListOutfitOptions returns every class outfit joined with its class.
func (q *queries) ListOutfitOptions(ctx context.Context) ([]outfit.Option, error) {
	if err := q.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description, o.id, o.description, o.weight
		 FROM class_outfits o JOIN classes c ON c.id = o.class_id
		 ORDER BY o.id`)
	if err != nil {
		return nil, fmt.Errorf("list outfit options: %w", err)
	}
	defer rows.Close()

	var options []outfit.Option
	for rows.Next() {
		var o outfit.Option
		if err := rows.Scan(&o.ClassID, &o.ClassName, &o.ClassDescription, &o.OutfitID, &o.OutfitDescription, &o.Weight); err != nil {
			return nil, fmt.Errorf("scan outfit option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outfit options: %w", err)
	}
	return options, nil
}
