// Package hidreport defines the fixed-layout HID report structs the
// keyboard core publishes and the HID writers serialize to a
// transport: boot and NKRO keyboard, consumer control, system
// control, mouse, and the two 32-byte Vial arrays.
package hidreport

// Encoder is the interface every report type implements to produce
// its wire bytes.
type Encoder interface {
	// Encode serializes the report into its fixed-size wire layout.
	Encode() []byte
}
