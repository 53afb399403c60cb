package main

import (
	"context"
	"net/http"
	"os"

	webAdapter "invoicing-backend/internal/adapters/web"
	"invoicing-backend/internal/ai"
	"invoicing-backend/internal/app"
	"invoicing-backend/internal/core"
	"invoicing-backend/internal/db"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	sequences := core.NewSequenceService(pool)
	orgs := core.NewOrgService(pool)
	invoices := core.NewInvoiceService(pool, sequences)
	creditNotes := core.NewCreditNoteService(pool, sequences)
	payments := core.NewPaymentService(pool)
	clients := core.NewClientService(pool)
	suppliers := core.NewSupplierService(pool)
	products := core.NewProductService(pool)

	var agent ai.AgentService
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		agent = ai.NewAgent(apiKey)
	} else {
		log.Warn("OPENAI_API_KEY is not set; AI endpoints are disabled")
	}

	svc := app.NewAppService(orgs, invoices, creditNotes, payments, clients, suppliers, products, agent)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, log, allowedOrigins)

	log.Infof("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
