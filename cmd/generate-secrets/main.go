package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/tripmart/marketplace-backend/internal/utils"
)

func main() {
	envOnly := flag.Bool("env", false, "print only the JWT_SECRET line")
	flag.Parse()

	secret, err := utils.GenerateJWTSecret()
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	if *envOnly {
		fmt.Printf("JWT_SECRET=%s\n", secret)
		return
	}

	fmt.Println("TripMart JWT secret")
	fmt.Println()
	fmt.Println("Share this value with the identity service and set it in the server environment:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Println()
	fmt.Println("Keep it out of version control.")
}
