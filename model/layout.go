package model

// Layout is a client layout preference.
type Layout string

const (
	LayoutDesktop Layout = "desktop"
	LayoutMobile  Layout = "mobile"
	LayoutTV      Layout = "tv"
)

// Valid reports whether l is a member of the closed layout set.
func (l Layout) Valid() bool {
	switch l {
	case LayoutDesktop, LayoutMobile, LayoutTV:
		return true
	}
	return false
}
