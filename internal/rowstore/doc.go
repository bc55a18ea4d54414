// Package rowstore is a small schema-checked record store over SQLite.
//
// A Table is declared with an ordered Schema of typed columns; the store
// adds an integer identity column ("id") to every table. Records are
// ordered name/value maps. Save rejects records whose keys differ from the
// declared columns, Edit updates a row in place by identity, and Filter,
// Get and Delete take ANDed equality conditions:
//
//	tbl, _ := rowstore.NewTable(db, "people", rowstore.MustSchema(
//		rowstore.Column{Name: "name", Type: rowstore.Text},
//		rowstore.Column{Name: "age", Type: rowstore.Integer},
//	))
//	_ = tbl.Init(ctx)
//	id, _ := tbl.Save(ctx, rowstore.NewRecord(rowstore.F("name", "Mary"), rowstore.F("age", 14)))
//	rec, _ := tbl.Get(ctx, rowstore.Eq("id", id))
package rowstore
