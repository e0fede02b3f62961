package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/payment/manager/abc":        "/payment/manager/:id",
		"/payment/member/abc":         "/payment/member/:id",
		"/payment/member/abc/extra":   "/payment/member/abc/extra",
		"/payment/paid/abc":           "/payment/paid/:id",
		"/payment/create":             "/payment/create",
		"/auth/login":                 "/auth/login",
		"/payment/member/abc?x=1":     "/payment/member/:id",
		"/payment/manager/":           "/payment/manager/",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
