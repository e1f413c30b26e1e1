// Package brewbrain talks to the Brew Brain float monitoring website.
//
// The site has no API: Login posts the login form and keeps the first segment
// of the Set-Cookie header as the session token, and every later request is a
// POST carrying that token as a Cookie header. Pages come back as HTML.
//
// extract.go holds the pure HTML functions (float list, the measurements URL
// hidden in the float page's inline scripts, the measurement blocks) built on
// goquery. client.go wires them to HTTP.
package brewbrain
