package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

const upiDebit = "Rs.500.00 has been debited from account 1234 to VPA merchant@upi Some Merchant Store on 15-07-25. Your transaction reference number is 987654"

type extractResult struct {
	Items    []map[string]any `json:"items"`
	Count    int              `json:"count"`
	Filtered int              `json:"filtered"`
	Error    string           `json:"error"`
}

func post(t *testing.T, body string) (int, extractResult) {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := New(nil, nil).App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var result extractResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to decode response %q: %v", data, err)
	}
	return resp.StatusCode, result
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := New(nil, nil).App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("got status=%q, want ok", result["status"])
	}
}

func TestExtractEndpoint(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantCount    int
		wantFiltered int
	}{
		{
			name:       "wrapped messages",
			body:       `{"messages":[{"id":"a","snippet":"` + upiDebit + `"},{"id":"b","snippet":"OTP is 123456 for login"},{"id":"c","snippet":"Hello"}]}`,
			wantStatus: fiber.StatusOK, wantCount: 2, wantFiltered: 1,
		},
		{
			name:       "bare array",
			body:       `[{"id":"a","snippet":"` + upiDebit + `"}]`,
			wantStatus: fiber.StatusOK, wantCount: 1,
		},
		{name: "empty body", body: "", wantStatus: fiber.StatusOK},
		{name: "no messages", body: `{}`, wantStatus: fiber.StatusOK},
		{name: "null message", body: `[null]`, wantStatus: fiber.StatusOK, wantFiltered: 1},
		{name: "malformed", body: `{"messages": [`, wantStatus: fiber.StatusBadRequest},
		{name: "wrong shape", body: `{"messages": "nope"}`, wantStatus: fiber.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, result := post(t, tc.body)

			if status != tc.wantStatus {
				t.Fatalf("got status %d, want %d", status, tc.wantStatus)
			}
			if status != fiber.StatusOK {
				if result.Error == "" {
					t.Error("error response should carry a message")
				}
				return
			}
			if result.Count != tc.wantCount || len(result.Items) != tc.wantCount {
				t.Errorf("count: got %d (%d items), want %d", result.Count, len(result.Items), tc.wantCount)
			}
			if result.Filtered != tc.wantFiltered {
				t.Errorf("filtered: got %d, want %d", result.Filtered, tc.wantFiltered)
			}
		})
	}
}

func TestExtractEndpointItems(t *testing.T) {
	_, result := post(t, `[{"id":"a","snippet":"`+upiDebit+`"},{"id":"c","snippet":"Hello","internalDate":"not a date"}]`)

	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	first := result.Items[0]
	if first["type"] != "UPI Debit" || first["amount"] != "Rs. 500.00" || first["vpaId"] != "merchant@upi" {
		t.Errorf("item 0: got %v", first)
	}
	second := result.Items[1]
	if second["snippet"] != "Hello" || second["date"] != "Unknown" {
		t.Errorf("item 1: got %v", second)
	}
}

func TestUnknownRoute(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/nope", nil)
	resp, err := New(nil, nil).App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
}
