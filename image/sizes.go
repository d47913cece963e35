package image

// Standard Atari floppy geometry byte counts, per original_source/atari.h
// (disk_image.h's FORMAT_* constants) and spec.md §4.8. These exclude any
// ATR header.
const (
	FormatSSSD35 = 80640
	FormatSSSD40 = 92160
	FormatSSED35 = 116480
	FormatSSED40 = 133120
	FormatSSDD35 = 160896
	FormatSSDD40 = 183936
)
