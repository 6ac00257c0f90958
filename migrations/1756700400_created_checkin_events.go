package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		tickets, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("checkin_events")

		collection.Fields.Add(
			&core.RelationField{Name: "ticket", Required: true, CollectionId: tickets.Id, MaxSelect: 1},
			&core.TextField{Name: "operator_id", Required: true},
			&core.SelectField{Name: "method", Required: true, Values: []string{"manual", "qr", "manual_override", "reset"}, MaxSelect: 1},
			&core.TextField{Name: "note"},
			&core.DateField{Name: "timestamp", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_checkin_events_ticket", false, "ticket", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("checkin_events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
