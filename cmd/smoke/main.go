package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke test against a running societyos-api instance: provision
// a society with a manager, admit members, issue a charge and verify the
// fan-out and settlement views through the public API.
func main() {
	base := os.Getenv("SOCIETYOS_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	run := rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1_000_000)

	managerPhone := fmt.Sprintf("7%09d", run)
	var provisioned struct {
		Society struct {
			ID string `json:"id"`
		} `json:"society"`
		Manager struct {
			ID string `json:"id"`
		} `json:"manager"`
	}
	mustPost(client, base+"/society/create-society", map[string]any{
		"name":     fmt.Sprintf("Smoke Society %d", run),
		"address":  "1 Smoke Street",
		"city":     "Pune",
		"state":    "MH",
		"pinCode":  "411001",
		"manager":  "Smoke Manager",
		"phone":    managerPhone,
		"email":    fmt.Sprintf("smoke-mgr-%d@example.com", run),
		"password": "smoke-pass",
	}, "", http.StatusCreated, &provisioned)

	var session struct {
		AccessToken string `json:"accessToken"`
	}
	mustPost(client, base+"/auth/login", map[string]any{
		"phone":    managerPhone,
		"password": "smoke-pass",
	}, "", http.StatusOK, &session)

	memberIDs := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		var member struct {
			ID string `json:"id"`
		}
		mustPost(client, base+"/society/add-member", map[string]any{
			"societyId": provisioned.Society.ID,
			"name":      fmt.Sprintf("Smoke Member %d", i),
			"phone":     fmt.Sprintf("8%08d%d", run, i),
			"email":     fmt.Sprintf("smoke-%d-%d@example.com", run, i),
			"password":  "member-pass",
		}, session.AccessToken, http.StatusCreated, &member)
		memberIDs = append(memberIDs, member.ID)
	}

	var payment struct {
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
		Fanout string `json:"fanout"`
	}
	mustPost(client, base+"/payment/create", map[string]any{
		"title":       "Smoke maintenance",
		"issueDate":   time.Now().UTC().Format("2006-01-02"),
		"dueDate":     time.Now().UTC().AddDate(0, 0, 14).Format("2006-01-02"),
		"amount":      500,
		"description": "smoke run",
		"createdBy":   provisioned.Manager.ID,
	}, session.AccessToken, http.StatusCreated, &payment)
	if payment.Fanout != "complete" {
		log.Fatalf("fan-out did not complete: %q", payment.Fanout)
	}

	var view struct {
		Payments []struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
			Status string `json:"status"`
		} `json:"payments"`
	}
	mustGet(client, base+"/payment/member/"+memberIDs[0], session.AccessToken, http.StatusOK, &view)
	if len(view.Payments) != 1 || view.Payments[0].Amount != 500 || view.Payments[0].Status != "pending" {
		log.Fatalf("unexpected member view: %+v", view.Payments)
	}

	mustPost(client, base+"/payment/mark-paid", map[string]any{
		"id":          view.Payments[0].ID,
		"amountPaid":  500,
		"externalRef": fmt.Sprintf("smoke-%d", run),
	}, session.AccessToken, http.StatusOK, nil)

	var paid struct {
		Payments []struct {
			MemberID string `json:"memberId"`
		} `json:"payments"`
	}
	mustGet(client, base+"/payment/paid/"+payment.Payment.ID, session.AccessToken, http.StatusOK, &paid)
	if len(paid.Payments) != 1 || paid.Payments[0].MemberID != memberIDs[0] {
		log.Fatalf("unexpected paid view: %+v", paid.Payments)
	}

	fmt.Printf("✅ societyos smoke test passed: society=%s charge=%s\n",
		provisioned.Society.ID, payment.Payment.ID)
}

func mustPost(client *http.Client, url string, body map[string]any, token string, wantStatus int, out any) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal %s: %v", url, err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	do(client, req, wantStatus, out)
}

func mustGet(client *http.Client, url, token string, wantStatus int, out any) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	do(client, req, wantStatus, out)
}

func do(client *http.Client, req *http.Request, wantStatus int, out any) {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", req.Method, req.URL, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", req.URL, err)
		}
	}
}
