package domain

import "github.com/rpattn/eveql/internal/clause"

// People returns the mapped table of the people resource. fullname is a
// computed property, firstname || ' ' || lastname.
func People() *Table {
	return &Table{
		Name:  "people",
		Model: "People",
		Columns: []Column{
			{Name: "id", Type: ColumnTypeInteger, PrimaryKey: true},
			{Name: "firstname", Type: ColumnTypeString, Length: 80, Nullable: true},
			{Name: "lastname", Type: ColumnTypeString, Length: 120, Nullable: true},
			{Name: "born", Type: ColumnTypeDateTime, Nullable: true},
		},
		Properties: []Property{
			{
				Name: "fullname",
				Type: ColumnTypeString,
				Build: func(t *Table) clause.Expression {
					return clause.Concatenate(t.C("firstname"), clause.Lit(" "), t.C("lastname"))
				},
			},
		},
	}
}
