package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vetdesk/appointment-engine/internal/adapters/database"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/clients/postgres"
	"github.com/vetdesk/appointment-engine/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	repo := database.NewAppointmentAdapter(pgClient)
	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating appointments before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE appointments`); err != nil {
			log.Fatalf("Failed to reset appointments: %v", err)
		}
	}

	now := time.Now().UTC()
	nextWeek := now.AddDate(0, 0, 7).Format(entities.DateFormat)
	lastMonth := now.AddDate(0, -1, 0).Format(entities.DateFormat)
	completedAt := now.AddDate(0, -1, 0)

	fee := 120.0
	stars := 5

	appointments := []entities.Appointment{
		{
			ID: uuid.New().String(), OwnerID: "owner-ada", VetID: "vet-okafor", PetID: "pet-bingo",
			Date: nextWeek, Time: "09:00",
			Category: entities.CategoryConsultation, Status: entities.AppointmentStatusPending,
			Reason:  "Bingo has been scratching his ears for a week",
			Version: 1, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.New().String(), OwnerID: "owner-femi", VetID: "vet-okafor", PetID: "pet-misty",
			Date: nextWeek, Time: "10:30",
			Category: entities.CategoryProcedure, Status: entities.AppointmentStatusApproved,
			Reason: "Dental cleaning under anesthesia",
			Fee:    &fee, FeeBreakdown: []string{"Base cost: 120.00"},
			VetNotes: "Fast overnight before the procedure",
			Version:  2, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.New().String(), OwnerID: "owner-ada", VetID: "vet-bello", PetID: "pet-bingo",
			Date: lastMonth, Time: "14:00",
			Category: entities.CategoryConsultation, Status: entities.AppointmentStatusCompleted,
			Reason:    "Annual vaccination",
			Diagnosis: "Healthy", Treatment: "DHPP booster administered",
			Prescriptions: []string{"Vitamin supplement, once daily"},
			Fee:           &fee, FeeBreakdown: []string{"Base cost: 120.00"},
			Rating: &stars, Review: "Quick and gentle with Bingo",
			Version: 5, CreatedAt: completedAt, UpdatedAt: completedAt, CompletedAt: &completedAt,
		},
	}

	for _, a := range appointments {
		if err := repo.Create(ctx, &a); err != nil {
			log.Printf("Failed to create appointment for %s: %v", a.PetID, err)
		}
	}

	log.Printf("Seeded %d appointments", len(appointments))
}
