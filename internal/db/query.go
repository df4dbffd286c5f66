package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed SQL conditions with numbered placeholders.
//
//	var w db.Where
//	w.Add("user_id = " + w.Arg(userID))
//	w.Add("created_at >= " + w.Arg(from))
//	query := "SELECT ... FROM decisions" + w.SQL()
type Where struct {
	conds []string
	args  []any
}

// Arg registers a positional argument and returns its placeholder ($n).
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// Add appends a condition.
func (w *Where) Add(cond string) {
	w.conds = append(w.conds, cond)
}

// SQL returns the WHERE clause, or an empty string when there are no conditions.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the arguments in placeholder order.
func (w *Where) Args() []any {
	return w.args
}
