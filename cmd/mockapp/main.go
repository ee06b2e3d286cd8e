// mockapp is a small stand-in for the learning-platform API, used as
// an upstream when exercising chaosproxy locally.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	LessonCount int     `json:"lesson_count"`
	Progress    float64 `json:"progress"`
}

type StatusResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

var courses = []Course{
	{ID: uuid.NewString(), Slug: "intro-to-go", Title: "Introduction to Go", LessonCount: 12, Progress: 0.42},
	{ID: uuid.NewString(), Slug: "web-accessibility", Title: "Web Accessibility", LessonCount: 8, Progress: 0.88},
	{ID: uuid.NewString(), Slug: "perf-engineering", Title: "Performance Engineering", LessonCount: 15, Progress: 0.1},
}

func main() {
	port := flag.Int("port", 3000, "Port to run the mock app on")
	delay := flag.Duration("delay", 0, "Artificial latency per request")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/dashboard/my-courses", withDelay(*delay, listCoursesHandler))
	mux.HandleFunc("/api/v1/dashboard/courses/", withDelay(*delay, courseDetailsHandler))
	mux.HandleFunc("/health", healthHandler)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	fmt.Printf("Mock app running on http://%s/\n", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func withDelay(d time.Duration, next http.HandlerFunc) http.HandlerFunc {
	if d <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(d)
		next(w, r)
	}
}

func listCoursesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, courses)
}

func courseDetailsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := strings.TrimPrefix(r.URL.Path, "/api/v1/dashboard/courses/")
	for _, course := range courses {
		if course.Slug == slug {
			writeJSON(w, http.StatusOK, course)
			return
		}
	}

	http.Error(w, "Course not found", http.StatusNotFound)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		RequestID: uuid.NewString(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
