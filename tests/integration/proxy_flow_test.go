package integration_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/stoa/internal/auth"
	"github.com/MarcoPoloResearchLab/stoa/internal/database"
	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/MarcoPoloResearchLab/stoa/internal/messages"
	"github.com/MarcoPoloResearchLab/stoa/internal/profiles"
	"github.com/MarcoPoloResearchLab/stoa/internal/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	proxySharedSecret = "integration-secret"
	sessionCookieName = "stoa_session"
	integrationShop   = "s1.myshopify.com"
	appBasePath       = "/apps/stoa"
	customerID        = "cust-1"
)

// noRedirectClient stops at the redirect so the test can inspect it; the real
// storefront follows it through the proxy, which re-signs the query.
var noRedirectClient = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func TestProxyFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite("file:proxy_flow?mode=memory&cache=shared", zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	tick := 0
	clock := func() time.Time {
		tick++
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}

	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{Secret: []byte(proxySharedSecret)})
	if err != nil {
		testContext.Fatalf("failed to build codec: %v", err)
	}
	bridge, err := auth.NewBridge(auth.BridgeConfig{
		Verifier:        auth.NewSignatureVerifier([]byte(proxySharedSecret)),
		Codec:           codec,
		CookieName:      sessionCookieName,
		DefaultBasePath: appBasePath,
	})
	if err != nil {
		testContext.Fatalf("failed to build bridge: %v", err)
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		testContext.Fatalf("failed to build profiles service: %v", err)
	}
	feedService, err := feed.NewService(feed.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		testContext.Fatalf("failed to build feed service: %v", err)
	}
	messageService, err := messages.NewService(messages.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		testContext.Fatalf("failed to build messages service: %v", err)
	}
	reader, err := feed.NewReader(feed.ReaderConfig{Database: db, Names: profileService})
	if err != nil {
		testContext.Fatalf("failed to build reader: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Bridge:      bridge,
		Reader:      reader,
		FeedService: feedService,
		Profiles:    profileService,
		Messages:    messageService,
		Logger:      zap.NewNop(),
		PageSize:    10,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	// First storefront visit arrives signed by the platform.
	firstVisit, err := noRedirectClient.Get(testServer.URL + "/?" + signedProxyQuery(customerID))
	if err != nil {
		testContext.Fatalf("signed visit failed: %v", err)
	}
	firstBody := readBody(testContext, firstVisit)
	if firstVisit.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected status on signed visit: %d", firstVisit.StatusCode)
	}
	if !strings.Contains(firstBody, "No posts yet.") {
		testContext.Fatalf("expected an empty timeline on first visit")
	}

	var sessionCookie *http.Cookie
	for _, cookie := range firstVisit.Cookies() {
		if cookie.Name == sessionCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		testContext.Fatalf("expected a minted session cookie")
	}

	// Follow-up form posts ride on the cookie alone.
	createResp := postFormWithCookie(testContext, testServer.URL+"/posts", url.Values{
		"body":   {"hello from integration"},
		"bucket": {"feed"},
	}, sessionCookie)
	if createResp.StatusCode != http.StatusSeeOther {
		testContext.Fatalf("unexpected status on post create: %d", createResp.StatusCode)
	}
	readBody(testContext, createResp)

	timelineResp := getWithCookie(testContext, testServer.URL+"/", sessionCookie)
	timelineBody := readBody(testContext, timelineResp)
	if !strings.Contains(timelineBody, "hello from integration") {
		testContext.Fatalf("expected the new post on the timeline")
	}

	likeResp := postFormWithCookie(testContext, testServer.URL+"/posts/1/like", url.Values{
		"bucket": {"feed"},
	}, sessionCookie)
	if likeResp.StatusCode != http.StatusSeeOther {
		testContext.Fatalf("unexpected status on like: %d", likeResp.StatusCode)
	}
	readBody(testContext, likeResp)

	likedResp := getWithCookie(testContext, testServer.URL+"/", sessionCookie)
	likedBody := readBody(testContext, likedResp)
	if !strings.Contains(likedBody, "&hearts; 1") {
		testContext.Fatalf("expected one like on the post")
	}

	// A direct message lands in the sender's inbox view immediately.
	messageResp := postFormWithCookie(testContext, testServer.URL+"/messages/cust-2", url.Values{
		"body": {"trade you for the blue one"},
	}, sessionCookie)
	if messageResp.StatusCode != http.StatusSeeOther {
		testContext.Fatalf("unexpected status on message send: %d", messageResp.StatusCode)
	}
	readBody(testContext, messageResp)

	inboxResp := getWithCookie(testContext, testServer.URL+"/messages", sessionCookie)
	inboxBody := readBody(testContext, inboxResp)
	if !strings.Contains(inboxBody, "customer-cust-2") {
		testContext.Fatalf("expected the partner's default name in the inbox")
	}
	if !strings.Contains(inboxBody, "You: trade you for the blue one") {
		testContext.Fatalf("expected the sent message preview in the inbox")
	}

	threadResp := getWithCookie(testContext, testServer.URL+"/messages/cust-2", sessionCookie)
	threadBody := readBody(testContext, threadResp)
	if !strings.Contains(threadBody, "trade you for the blue one") {
		testContext.Fatalf("expected the message in the thread view")
	}

	// An unsigned, cookie-less visitor still gets HTTP 200 with the prompt.
	strangerResp, err := noRedirectClient.Get(testServer.URL + "/?shop=" + integrationShop)
	if err != nil {
		testContext.Fatalf("unsigned visit failed: %v", err)
	}
	strangerBody := readBody(testContext, strangerResp)
	if strangerResp.StatusCode != http.StatusOK {
		testContext.Fatalf("rejected visit must answer 200, got %d", strangerResp.StatusCode)
	}
	if !strings.Contains(strangerBody, "Please sign in") {
		testContext.Fatalf("expected the sign-in prompt for the unsigned visitor")
	}
}

func signedProxyQuery(loggedInCustomerID string) string {
	verifier := auth.NewSignatureVerifier([]byte(proxySharedSecret))
	params := url.Values{
		"shop":                  {integrationShop},
		"logged_in_customer_id": {loggedInCustomerID},
		"path_prefix":           {appBasePath},
		"timestamp":             {fmt.Sprintf("%d", time.Now().Unix())},
	}
	params.Set("signature", verifier.Sign(params))
	return params.Encode()
}

func getWithCookie(testContext *testing.T, target string, cookie *http.Cookie) *http.Response {
	testContext.Helper()
	request, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.AddCookie(cookie)
	response, err := noRedirectClient.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	return response
}

func postFormWithCookie(testContext *testing.T, target string, form url.Values, cookie *http.Cookie) *http.Response {
	testContext.Helper()
	request, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.AddCookie(cookie)
	response, err := noRedirectClient.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	return response
}

func readBody(testContext *testing.T, response *http.Response) string {
	testContext.Helper()
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		testContext.Fatalf("failed to read body: %v", err)
	}
	return string(data)
}
