package bibtex

// Standard month macros (jan through dec) as defined by the common BibTeX
// style files. When enabled on a bibliography they resolve like string
// constants but are not serialized as elements.

// monthNames maps macro name to full month name, in calendar order.
var monthNames = []struct {
	Macro string
	Name  string
}{
	{"jan", "January"},
	{"feb", "February"},
	{"mar", "March"},
	{"apr", "April"},
	{"may", "May"},
	{"jun", "June"},
	{"jul", "July"},
	{"aug", "August"},
	{"sep", "September"},
	{"oct", "October"},
	{"nov", "November"},
	{"dec", "December"},
}

// monthMacros is the lookup table backing month resolution.
var monthMacros = func() map[string]*Value {
	m := make(map[string]*Value, len(monthNames))
	for _, mn := range monthNames {
		m[mn.Macro] = NewLiteral(mn.Name)
	}
	return m
}()

// MonthMacro returns the predefined value for a month macro name
// ("jan" through "dec", case-insensitive at the parser layer).
func MonthMacro(name string) (*Value, bool) {
	v, ok := monthMacros[name]
	return v, ok
}
