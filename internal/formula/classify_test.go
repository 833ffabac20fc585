package formula

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		formula string
		want    Category
	}{
		{"has_rcd == True", CategoryBoolean},
		{"spd_installed==false", CategoryBoolean},
		{"IF S_fase<=16 THEN S_pe>=S_fase; IF 16<S_fase<=35 THEN S_pe>=16; IF S_fase>35 THEN S_pe>=S_fase/2", CategoryConditional},
		{"S_pe >= 16; IF S_fase > 35 THEN S_pe >= S_fase/2", CategoryConditional},
		{"Iz_corrected = Iz_base * lookup_52D1(temp_ambient, insulation_type)", CategoryCorrection},
		{"IB <= lookup_ampacity(S_fase, installation_method)", CategoryLookup},
		{"S_pe >= sqrt(I^2 * t) / k", CategoryMath},
		{"S_pe ≥ √(I²·t)/k", CategoryMath},
		{"I²t <= k²S²", CategoryMath},
		{"Icc^2 * t <= k^2 * S^2", CategoryMath},
		{"RA * IDn_A <= 50", CategoryMath},
		{"S_neutral >= MAX(16, S_phase/2)", CategoryCompound},
		{"IB <= In AND In <= Iz", CategoryCompound},
		{"IDn_mA <= 30", CategorySimple},
		{"ABS(voltage_drop) < 3", CategorySimple},
		{`IP >= "IP44"`, CategorySimple},
		{"", CategorySimple},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			if got := Classify(tt.formula); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.formula, got, tt.want)
			}
		})
	}
}

func TestClassify_CorrectionBeforeLookup(t *testing.T) {
	f := "Iz_corrected = Iz_base * lookup_52D1(temp_ambient, insulation_type)"
	if got := Classify(f); got != CategoryCorrection {
		t.Errorf("Classify(%q) = %v, want correction", f, got)
	}
}

func TestCategory_StringRoundTrip(t *testing.T) {
	for c := CategorySimple; c <= CategoryCompound; c++ {
		got, ok := ParseCategory(c.String())
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %v, %v, want %v", c.String(), got, ok, c)
		}
	}
	if Category(99).String() != "unknown" {
		t.Errorf("Category(99).String() = %q, want unknown", Category(99).String())
	}
}

// Property-based test: classification is total and deterministic
func TestClassify_PropertyDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same input, same category", prop.ForAll(
		func(s string) bool {
			a := Classify(s)
			return a == Classify(s) && a >= CategorySimple && a <= CategoryCompound
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestCheck(t *testing.T) {
	valid := []string{
		"IDn_mA <= 30",
		"has_rcd == True",
		`IP >= "IP44"`,
		"IF S_fase<=16 THEN S_pe>=S_fase; IF S_fase>16 THEN S_pe>=16 AND S_neutral>=16",
		"Iz_corrected = Iz_base * lookup_52D1(temp_ambient, insulation_type)",
		"IB <= lookup_ampacity(S_fase, installation_method)",
		"S_pe >= sqrt(I^2 * t) / k",
		"S_neutral >= MAX(16, S_phase/2)",
		"y = a*x^2 + b",
	}
	for _, f := range valid {
		if err := Check(f); err != nil {
			t.Errorf("Check(%q) = %v, want nil", f, err)
		}
	}

	invalid := []string{
		"",
		"just words",
		"IF S_fase > 16 S_pe >= 16",
		"IB <= In AND In <=",
		"S_pe >= foo(1)",
		"Icc^2 > 5",
	}
	for _, f := range invalid {
		if err := Check(f); err == nil {
			t.Errorf("Check(%q) = nil, want error", f)
		}
	}
}

func TestLookupNames(t *testing.T) {
	got := LookupNames("Iz_corrected = Iz_base * lookup_52D1(temp_ambient) * lookup_52E1(grouping) * lookup_52D1(x)")
	if len(got) != 2 || got[0] != "52D1" || got[1] != "52E1" {
		t.Errorf("LookupNames() = %v, want [52D1 52E1]", got)
	}
}
