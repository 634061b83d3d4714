package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/leadfinder/internal/mockcrm"
)

func main() {
	addr := defaultString("MOCK_CRM_ADDR", ":8090")
	token := defaultString("MOCK_CRM_TOKEN", "")
	clientID := defaultString("GHL_CLIENT_ID", "")
	clientSecret := defaultString("GHL_CLIENT_SECRET", "")
	codes := defaultString("MOCK_CRM_CODES", "")
	rejects := defaultString("MOCK_CRM_REJECT_EMAILS", "")

	fs := flag.NewFlagSet("mock-crm", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&token, "token", token, "Bearer token API calls must carry; empty disables the check")
	fs.StringVar(&clientID, "client-id", clientID, "OAuth client id the token endpoint accepts")
	fs.StringVar(&clientSecret, "client-secret", clientSecret, "OAuth client secret the token endpoint accepts")
	fs.StringVar(&codes, "codes", codes, "Comma-separated code=locationId pairs redeemable at /oauth/token (also supports env: MOCK_CRM_CODES)")
	fs.StringVar(&rejects, "reject-emails", rejects, "Comma-separated emails whose contact creation fails with 400")
	_ = fs.Parse(os.Args[1:])

	srv := mockcrm.New()
	srv.RequireBearerToken(token)
	if clientID != "" {
		srv.RegisterOAuthClient(clientID, clientSecret)
	}
	for _, pair := range splitCSV(codes) {
		code, location, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(location) == "" {
			_, _ = fmt.Fprintf(os.Stderr, "invalid code pair %q (want code=locationId)\n", pair)
			os.Exit(2)
		}
		srv.IssueCode(strings.TrimSpace(code), strings.TrimSpace(location), "")
	}
	for _, email := range splitCSV(rejects) {
		srv.RejectEmail(email, http.StatusBadRequest, "rejected by mock-crm")
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-crm listening on %s (api version %s)\n", addr, mockcrm.APIVersion)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
