// Command smoke drives a running API end to end, from a seeded user to a saved
// favorite university.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/config"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	field := flag.String("field", "Machine Learning", "field of interest")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	userID := uuid.New()
	email := fmt.Sprintf("smoke-%s@example.com", userID)
	log.Printf("Seeding user %s", userID)

	_, err = db.Pool().Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, email, "Smoke Test", "unused", models.RoleStudent)
	if err != nil {
		log.Fatalf("Failed to insert user: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	c := &client{base: *baseURL, token: token, http: &http.Client{Timeout: cfg.GenerationTimeout + 10*time.Second}}

	log.Println("Updating draft...")
	c.mustCall(http.MethodPut, "/api/v1/profile/draft", map[string]any{
		"field_of_interest": *field,
		"education_level":   "masters",
		"desired_count":     3,
	}, http.StatusOK, nil)

	log.Println("Generating universities...")
	var recs struct {
		Token      uint64              `json:"token"`
		Candidates []models.University `json:"candidates"`
	}
	c.mustCall(http.MethodPost, "/api/v1/recommendations/universities", nil, http.StatusOK, &recs)
	for _, u := range recs.Candidates {
		log.Printf("  %s (%s) match=%d", u.Name, u.Country, u.Score)
	}
	if len(recs.Candidates) == 0 {
		log.Fatal("No candidates returned")
	}

	log.Println("Saving the first candidate...")
	c.mustCall(http.MethodPost, "/api/v1/favorites/selection/toggle", map[string]any{
		"kind":       models.KindUniversities,
		"university": recs.Candidates[0],
	}, http.StatusOK, nil)
	c.mustCall(http.MethodPost, "/api/v1/favorites/complete", nil, http.StatusOK, nil)

	var favs struct {
		Universities []models.FavoriteUniversity `json:"universities"`
	}
	c.mustCall(http.MethodGet, "/api/v1/favorites", nil, http.StatusOK, &favs)
	log.Printf("SUCCESS: %d saved universities", len(favs.Universities))
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) mustCall(method, path string, body any, want int, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s: %v", path, err)
		}
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		log.Fatalf("build %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		log.Fatalf("%s %s: expected %d, got %d. Body: %s", method, path, want, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}
