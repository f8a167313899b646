package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/config"
	"github.com/ManuelReschke/PawMart/internal/pkg/database"
	"github.com/ManuelReschke/PawMart/internal/pkg/env"
	"github.com/ManuelReschke/PawMart/internal/pkg/middleware"
)

const defaultTokenTTL = 24 * time.Hour

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	database.SetupDatabase(cfg.Database())
	users := repository.NewFactory(database.GetDB()).GetUserRepository()

	switch os.Args[1] {
	case "create-user", "create-admin":
		if len(os.Args) < 5 {
			log.Fatalf("%s needs <name> <email> <password>", os.Args[1])
		}
		role := models.ROLE_USER
		if os.Args[1] == "create-admin" {
			role = models.ROLE_ADMIN
		}
		u, err := models.CreateUser(os.Args[2], os.Args[3], os.Args[4], role)
		if err != nil {
			log.Fatalf("invalid user: %v", err)
		}
		u.Status = models.STATUS_ACTIVE
		if err := users.Create(u); err != nil {
			log.Fatalf("creating user failed: %v", err)
		}
		log.Infof("created %s %s with id %d", role, u.Email, u.ID)

	case "token":
		if len(os.Args) < 4 {
			log.Fatal("token needs <email> <password> [ttl]")
		}
		ttl := defaultTokenTTL
		if len(os.Args) > 4 {
			d, err := time.ParseDuration(os.Args[4])
			if err != nil {
				log.Fatalf("invalid ttl: %v", err)
			}
			ttl = d
		}
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is not set")
		}
		u, err := users.GetByEmail(os.Args[2])
		if err != nil || !models.CheckPasswordHash(os.Args[3], u.Password) {
			log.Fatal("unknown email or wrong password")
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, u.ID, ttl)
		if err != nil {
			log.Fatalf("issuing token failed: %v", err)
		}
		fmt.Println(token)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/pawctl/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  create-user  <name> <email> <password>  - create an active customer")
	fmt.Println("  create-admin <name> <email> <password>  - create an admin")
	fmt.Println("  token <email> <password> [ttl]          - print a bearer token (default ttl 24h)")
}
