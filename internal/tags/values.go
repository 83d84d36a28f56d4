package tags

// ValueTable maps a raw numeric tag value to its human-readable form.
type ValueTable map[uint32]string

// Values holds the enumerated value tables, keyed by tag name. Lookups are
// scoped per tag: the same raw code means different things for different tags.
var Values = map[string]ValueTable{
	"ExposureProgram": {
		0: "Not defined",
		1: "Manual",
		2: "Normal program",
		3: "Aperture priority",
		4: "Shutter priority",
		5: "Creative program",
		6: "Action program",
		7: "Portrait mode",
		8: "Landscape mode",
	},
	"MeteringMode": {
		0:   "Unknown",
		1:   "Average",
		2:   "CenterWeightedAverage",
		3:   "Spot",
		4:   "MultiSpot",
		5:   "Pattern",
		6:   "Partial",
		255: "Other",
	},
	"LightSource": {
		0:   "Unknown",
		1:   "Daylight",
		2:   "Fluorescent",
		3:   "Tungsten (incandescent light)",
		4:   "Flash",
		9:   "Fine weather",
		10:  "Cloudy weather",
		11:  "Shade",
		12:  "Daylight fluorescent (D 5700 - 7100K)",
		13:  "Day white fluorescent (N 4600 - 5400K)",
		14:  "Cool white fluorescent (W 3900 - 4500K)",
		15:  "White fluorescent (WW 3200 - 3700K)",
		17:  "Standard light A",
		18:  "Standard light B",
		19:  "Standard light C",
		20:  "D55",
		21:  "D65",
		22:  "D75",
		23:  "D50",
		24:  "ISO studio tungsten",
		255: "Other",
	},
	"Flash": {
		0x0000: "Flash did not fire",
		0x0001: "Flash fired",
		0x0005: "Strobe return light not detected",
		0x0007: "Strobe return light detected",
		0x0009: "Flash fired, compulsory flash mode",
		0x000D: "Flash fired, compulsory flash mode, return light not detected",
		0x000F: "Flash fired, compulsory flash mode, return light detected",
		0x0010: "Flash did not fire, compulsory flash mode",
		0x0018: "Flash did not fire, auto mode",
		0x0019: "Flash fired, auto mode",
		0x001D: "Flash fired, auto mode, return light not detected",
		0x001F: "Flash fired, auto mode, return light detected",
		0x0020: "No flash function",
		0x0041: "Flash fired, red-eye reduction mode",
		0x0045: "Flash fired, red-eye reduction mode, return light not detected",
		0x0047: "Flash fired, red-eye reduction mode, return light detected",
		0x0049: "Flash fired, compulsory flash mode, red-eye reduction mode",
		0x004D: "Flash fired, compulsory flash mode, red-eye reduction mode, return light not detected",
		0x004F: "Flash fired, compulsory flash mode, red-eye reduction mode, return light detected",
		0x0059: "Flash fired, auto mode, red-eye reduction mode",
		0x005D: "Flash fired, auto mode, return light not detected, red-eye reduction mode",
		0x005F: "Flash fired, auto mode, return light detected, red-eye reduction mode",
	},
	"SensingMethod": {
		1: "Not defined",
		2: "One-chip color area sensor",
		3: "Two-chip color area sensor",
		4: "Three-chip color area sensor",
		5: "Color sequential area sensor",
		7: "Trilinear sensor",
		8: "Color sequential linear sensor",
	},
	"SceneCaptureType": {
		0: "Standard",
		1: "Landscape",
		2: "Portrait",
		3: "Night scene",
	},
	"SceneType": {
		1: "Directly photographed",
	},
	"CustomRendered": {
		0: "Normal process",
		1: "Custom process",
	},
	"WhiteBalance": {
		0: "Auto white balance",
		1: "Manual white balance",
	},
	"GainControl": {
		0: "None",
		1: "Low gain up",
		2: "High gain up",
		3: "Low gain down",
		4: "High gain down",
	},
	"Contrast": {
		0: "Normal",
		1: "Soft",
		2: "Hard",
	},
	"Saturation": {
		0: "Normal",
		1: "Low saturation",
		2: "High saturation",
	},
	"Sharpness": {
		0: "Normal",
		1: "Soft",
		2: "Hard",
	},
	"SubjectDistanceRange": {
		0: "Unknown",
		1: "Macro",
		2: "Close view",
		3: "Distant view",
	},
	"FileSource": {
		3: "DSC",
	},
}

// Components translates the bytes of ComponentsConfiguration.
var Components = ValueTable{
	0: "",
	1: "Y",
	2: "Cb",
	3: "Cr",
	4: "R",
	5: "G",
	6: "B",
}

// Enumerated lists the Exif tags whose raw value is replaced by its Values entry.
var Enumerated = []string{
	"LightSource",
	"Flash",
	"MeteringMode",
	"ExposureProgram",
	"SensingMethod",
	"SceneCaptureType",
	"SceneType",
	"CustomRendered",
	"WhiteBalance",
	"GainControl",
	"Contrast",
	"Saturation",
	"Sharpness",
	"SubjectDistanceRange",
	"FileSource",
}

// Lookup returns the human-readable form of code for the named tag.
func Lookup(tag string, code uint32) (string, bool) {
	table, ok := Values[tag]
	if !ok {
		return "", false
	}
	text, ok := table[code]
	return text, ok
}

// IPTCFields maps an IPTC application record dataset number to a field name.
var IPTCFields = map[uint8]string{
	0x78: "caption",
	0x6E: "credit",
	0x16: "fixtureID",
	0x19: "keywords",
	0x37: "dateCreated",
	0x50: "byline",
	0x55: "bylineTitle",
	0x7A: "captionWriter",
	0x69: "headline",
	0x74: "copyright",
	0x0F: "category",
}
