// Package alerts evaluates threshold rules against float readings after every
// scheduled refresh and delivers firing/resolved notifications to webhooks
// (slack, teams or plain http).
package alerts
