package domain

import "errors"

// ErrSourceUnavailable means an ingestion source could not be attached: the
// target page is unreachable or the chat pane never appeared. Surfaced to
// subscribers as an immediate terminal event; no session is registered.
var ErrSourceUnavailable = errors.New("ingestion source unavailable")

// ErrOffline means the session has reached its terminal state and accepts
// no further input or subscribers.
var ErrOffline = errors.New("stream is offline")
