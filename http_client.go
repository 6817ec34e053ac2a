package main

import (
	"net/http"
	"time"
)

const scheduleHTTPTimeout = 30 * time.Second

// scheduleHTTPClient is the shared client for schedule-page fetches.
// Google API calls carry their own OAuth transport and do not use it.
var scheduleHTTPClient = &http.Client{
	Timeout: scheduleHTTPTimeout,
}
