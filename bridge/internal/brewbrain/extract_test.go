package brewbrain

import (
	"testing"

	"github.com/brewbridge/brewbridge/bridge/internal/brewbrain/brewbraintest"
	"github.com/brewbridge/brewbridge/pkg/types"
)

func TestSessionToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sess=abc123; Path=/; HttpOnly", "sess=abc123"},
		{"X=Y; Path=/; Expires=Wed, 21 Oct 2026 07:28:00 GMT", "X=Y"},
		{"X=Y", "X=Y"},
		{"  X=Y ;Path=/", "X=Y"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := SessionToken(tc.in); got != tc.want {
			t.Errorf("SessionToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanValue(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Value: 12.345 °P", "12.345", true},
		{"-0.5", "-0.5", true},
		{"+3 V", "+3", true},
		{"19.872 °C", "19.872", true},
		{"1.0123456", "1.012", true},
		{"4.1 V and 5.2 V", "4.1", true},
		{"n/a", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := CleanValue(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("CleanValue(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestParseFloats_DocumentOrder(t *testing.T) {
	page := brewbraintest.FloatListPage(
		types.Float{ID: "42", Name: "Tank1"},
		types.Float{ID: "7", Name: "Tank2"},
		types.Float{ID: "1001", Name: "Kveik & co"},
	)

	floats, err := ParseFloats(page, nil)
	if err != nil {
		t.Fatalf("ParseFloats() error = %v", err)
	}
	want := []types.Float{{ID: "42", Name: "Tank1"}, {ID: "7", Name: "Tank2"}, {ID: "1001", Name: "Kveik & co"}}
	if len(floats) != len(want) {
		t.Fatalf("got %d floats, want %d (decoy must be ignored): %+v", len(floats), len(want), floats)
	}
	for i := range want {
		if floats[i] != want[i] {
			t.Errorf("floats[%d] = %+v, want %+v", i, floats[i], want[i])
		}
	}
}

func TestParseFloats_SingleMarkedElement(t *testing.T) {
	page := `<div class="FloatIdentifier"><a href="/mothership/show/42">Tank1</a></div>`
	floats, err := ParseFloats(page, nil)
	if err != nil {
		t.Fatalf("ParseFloats() error = %v", err)
	}
	if len(floats) != 1 || floats[0] != (types.Float{ID: "42", Name: "Tank1"}) {
		t.Errorf("floats = %+v", floats)
	}
}

func TestParseFloats_SkipsUnusableElements(t *testing.T) {
	page := `
<div class="FloatIdentifier"><span>no link</span></div>
<div class="FloatIdentifier"><a>no href</a></div>
<div class="FloatIdentifier"><a href="/mothership/show/">no id</a></div>
<div class="Card FloatIdentifier"><a href="https://my.brewbrain.nl/mothership/show/9">Extra class</a></div>
`
	floats, err := ParseFloats(page, nil)
	if err != nil {
		t.Fatalf("ParseFloats() error = %v", err)
	}
	if len(floats) != 1 || floats[0] != (types.Float{ID: "9", Name: "Extra class"}) {
		t.Errorf("floats = %+v, want only the float with id 9", floats)
	}
}

func TestParseFloats_Empty(t *testing.T) {
	floats, err := ParseFloats("<html><body>No floats yet</body></html>", nil)
	if err != nil {
		t.Fatalf("ParseFloats() error = %v", err)
	}
	if len(floats) != 0 {
		t.Errorf("floats = %+v, want none", floats)
	}
}

func TestFindMeasurementsPath_LastMatchWins(t *testing.T) {
	page := `<html><head>
<script>load("/APIKey/latestMeasurements/1"); load("/APIKey/latestMeasurements/2");</script>
</head><body>
<script src="/js/app.js"></script>
<script>var other = "/APIKey/somethingElse/5";</script>
<script>refresh("/APIKey/latestMeasurements/3");</script>
<script>var done = true;</script>
</body></html>`

	got, err := FindMeasurementsPath(page)
	if err != nil {
		t.Fatalf("FindMeasurementsPath() error = %v", err)
	}
	if got != "/APIKey/latestMeasurements/3" {
		t.Errorf("path = %q, want the last match /APIKey/latestMeasurements/3", got)
	}
}

func TestFindMeasurementsPath_LastMatchWithinOneScript(t *testing.T) {
	page := brewbraintest.FloatPage("/APIKey/latestMeasurements/10") +
		`<script>a("/APIKey/latestMeasurements/11"); b("/APIKey/latestMeasurements/12")</script>`

	got, err := FindMeasurementsPath(page)
	if err != nil {
		t.Fatalf("FindMeasurementsPath() error = %v", err)
	}
	if got != "/APIKey/latestMeasurements/12" {
		t.Errorf("path = %q, want /APIKey/latestMeasurements/12", got)
	}
}

func TestFindMeasurementsPath_NoMatch(t *testing.T) {
	page := `<p>/APIKey/latestMeasurements/4 outside a script</p><script>var x = "/APIKey/latestMeasurements/";</script>`
	got, err := FindMeasurementsPath(page)
	if err != nil {
		t.Fatalf("FindMeasurementsPath() error = %v", err)
	}
	if got != "" {
		t.Errorf("path = %q, want empty", got)
	}
}

func TestParseMeasurements(t *testing.T) {
	page := `
<div class="LatestMeasurementsContainer">
  <div class="BrewShowLatestMeasurement">
    <span class="MeasurementMeasurand"> Temperature </span>
    <b><span>19.872 °C</span></b>
  </div>
  <div class="BrewShowLatestMeasurement">
    <span class="MeasurementMeasurand">SG</span>
    <b><span>Value: 1.0123 SG</span></b>
  </div>
  <div class="BrewShowLatestMeasurement">
    <span class="MeasurementMeasurand">Voltage</span>
    <b><span>4.1 V</span></b>
  </div>
  <div class="BrewShowLatestMeasurement">
    <span class="MeasurementMeasurand">Angle</span>
    <b><span>unknown</span></b>
  </div>
  <div class="BrewShowLatestMeasurement">
    <b><span>99</span></b>
  </div>
</div>
<div class="BrewShowLatestMeasurement">
  <span class="MeasurementMeasurand">Outside</span>
  <b><span>1</span></b>
</div>`

	m, err := ParseMeasurements(page)
	if err != nil {
		t.Fatalf("ParseMeasurements() error = %v", err)
	}
	want := types.Measurements{"Temperature": "19.872", "SG": "1.012", "Voltage": "4.1"}
	if len(m) != len(want) {
		t.Fatalf("measurements = %v, want %v", m, want)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("m[%q] = %q, want %q", k, m[k], v)
		}
	}
}

func TestParseMeasurements_NoContainer(t *testing.T) {
	m, err := ParseMeasurements(`<div class="SomethingElse"></div>`)
	if err != nil {
		t.Fatalf("ParseMeasurements() error = %v", err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("measurements = %v, want empty non-nil map", m)
	}
}
