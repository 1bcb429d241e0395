package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/citaflow/citaflow/internal/db"
	"github.com/citaflow/citaflow/internal/phone"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBusinesses(context.Background(), pool, 20); err != nil {
		log.Fatalf("seed businesses: %v", err)
	}

	log.Println("seed complete")
}

var serviceCatalog = []struct {
	name     string
	duration int
	price    float64
}{
	{"Corte de cabello", 30, 150},
	{"Corte y barba", 60, 250},
	{"Manicure", 30, 200},
	{"Pedicure", 60, 300},
	{"Tinte", 90, 600},
	{"Consulta general", 30, 400},
	{"Limpieza dental", 60, 800},
	{"Masaje relajante", 60, 500},
	{"Facial", 60, 450},
	{"Depilación", 30, 350},
}

func seedBusinesses(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d businesses", count)

	for i := 0; i < count; i++ {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		bizID := uuid.New()
		name := gofakeit.Company()
		slug := fmt.Sprintf("demo-%s-%d", gofakeit.Word(), i)
		ownerPhone := phone.Normalize(gofakeit.Numerify("55########"))

		_, err = tx.Exec(ctx, `
			INSERT INTO businesses (id, slug, name, timezone, address, whatsapp_phone, active, created_at, updated_at)
			VALUES ($1, $2, $3, 'America/Mexico_City', $4, $5, true, now(), now())
		`, bizID, slug, name, gofakeit.Address().Address, ownerPhone)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}

		// Seven weekday rows, closed Sundays.
		for weekday := 0; weekday < 7; weekday++ {
			isOpen := weekday != 0
			var opens, closes *string
			if isOpen {
				o, c := "09:00", "19:00"
				opens, closes = &o, &c
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO business_hours (id, business_id, weekday, is_open, opens_at, closes_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New(), bizID, weekday, isOpen, opens, closes)
			if err != nil {
				tx.Rollback(ctx)
				return err
			}
		}

		nServices := gofakeit.Number(2, 5)
		for s := 0; s < nServices; s++ {
			svc := serviceCatalog[gofakeit.Number(0, len(serviceCatalog)-1)]
			_, err = tx.Exec(ctx, `
				INSERT INTO services (id, business_id, name, duration_minutes, price, active, sort_order)
				VALUES ($1, $2, $3, $4, $5, true, $6)
			`, uuid.New(), bizID, svc.name, svc.duration, svc.price, s)
			if err != nil {
				tx.Rollback(ctx)
				return err
			}
		}

		nStaff := gofakeit.Number(1, 3)
		for s := 0; s < nStaff; s++ {
			role := "staff"
			if s == 0 {
				role = "owner"
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO users (id, business_id, name, phone, role)
				VALUES ($1, $2, $3, $4, $5)
			`, uuid.New(), bizID, gofakeit.Name(), phone.Normalize(gofakeit.Numerify("55########")), role)
			if err != nil {
				tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	return nil
}
