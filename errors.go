/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Seednode/lineup/lineup"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func errorf(format string, args ...any) {
	log.Printf("%s | ERROR: "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// storeLogger routes store messages through logf. Warnings and errors are
// always printed.
type storeLogger struct {
	cfg *Config
}

var _ lineup.Logger = storeLogger{}

func (l storeLogger) Debug(msg string, kv ...any) { logf(l.cfg, "LINEUP: %s%s", msg, fields(kv)) }
func (l storeLogger) Info(msg string, kv ...any)  { logf(l.cfg, "LINEUP: %s%s", msg, fields(kv)) }
func (l storeLogger) Warn(msg string, kv ...any)  { errorf("%s%s", msg, fields(kv)) }
func (l storeLogger) Error(msg string, kv ...any) { errorf("%s%s", msg, fields(kv)) }

func fields(kv []any) string {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%q", kv[i], fmt.Sprint(kv[i+1]))
		} else {
			fmt.Fprintf(&b, " %v", kv[i])
		}
	}
	return b.String()
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
