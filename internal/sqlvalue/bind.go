package sqlvalue

import (
	"database/sql"

	"github.com/proofrock/sqliterg/internal/apperr"
)

// BindSet is one fully-resolved set of bind arguments ready for
// stmt.ExecContext/QueryContext, built from either a named map or a
// positional array (spec §4.3).
type BindSet []any

// ResolveBindings implements the values/valuesBatch exclusivity rule and
// returns the list of bind sets to apply — one for `values`, N for
// `valuesBatch`. A statement with neither field returns a single empty
// BindSet (no parameters).
func ResolveBindings(values, valuesBatch any) ([]BindSet, bool, error) {
	if values != nil && valuesBatch != nil {
		return nil, false, apperr.BadRequest("item has both values and valuesBatch")
	}

	if valuesBatch != nil {
		batch, ok := valuesBatch.([]any)
		if !ok {
			return nil, false, apperr.BadRequest("valuesBatch must be an array")
		}
		sets := make([]BindSet, 0, len(batch))
		for _, entry := range batch {
			set, err := resolveOne(entry)
			if err != nil {
				return nil, false, err
			}
			sets = append(sets, set)
		}
		return sets, true, nil
	}

	if values != nil {
		set, err := resolveOne(values)
		if err != nil {
			return nil, false, err
		}
		return []BindSet{set}, false, nil
	}

	return []BindSet{{}}, false, nil
}

func resolveOne(values any) (BindSet, error) {
	switch t := values.(type) {
	case map[string]any:
		return resolveNamed(t)
	case []any:
		return resolvePositional(t)
	default:
		return nil, apperr.BadRequest("values must be an object or array")
	}
}

// namedBinding pairs a named placeholder with its resolved value. The SQL
// driver for named params expects sql.Named(name, value); the name must
// match the ":name" placeholder without its leading colon.
type namedBinding struct {
	name  string
	value Value
}

func resolveNamed(m map[string]any) (BindSet, error) {
	bindings := make([]namedBinding, 0, len(m))
	for k, v := range m {
		val, err := FromJSON(v)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, namedBinding{name: k, value: val})
	}
	set := make(BindSet, len(bindings))
	for i, b := range bindings {
		set[i] = sql.Named(b.name, b.value.Driver())
	}
	return set, nil
}

func resolvePositional(arr []any) (BindSet, error) {
	set := make(BindSet, len(arr))
	for i, v := range arr {
		val, err := FromJSON(v)
		if err != nil {
			return nil, err
		}
		set[i] = val.Driver()
	}
	return set, nil
}
