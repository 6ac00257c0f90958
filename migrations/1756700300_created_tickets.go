package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		ticketTypes, err := app.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "ticket_code", Required: true, Pattern: `^GIGG-[A-Z0-9]{4}-[A-Z0-9]{4}$`},
			&core.RelationField{Name: "ticket_type", Required: true, CollectionId: ticketTypes.Id, MaxSelect: 1},
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1},
			&core.TextField{Name: "buyer_name"},
			&core.EmailField{Name: "buyer_email"},
			&core.SelectField{Name: "status", Required: true, Values: []string{"valid", "used", "cancelled"}, MaxSelect: 1},
			&core.TextField{Name: "processor_session_id"},
			&core.TextField{Name: "payment_intent_id"},
			&core.DateField{Name: "checked_in_at"},
			&core.TextField{Name: "checked_in_by"},
			&core.DateField{Name: "refunded_at"},
			&core.DateField{Name: "chargeback_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// codes must never collide; generation retries on a violation
		collection.AddIndex("idx_tickets_ticket_code", true, "ticket_code", "")
		collection.AddIndex("idx_tickets_session", false, "processor_session_id", "")
		collection.AddIndex("idx_tickets_status", false, "status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
