package dialer

// callingCodeToISO maps country calling codes (1-3 digits, without the "+")
// to ISO 3166-1 alpha-2 country codes. Codes not listed here simply produce
// no flag and unmodified display text.
var callingCodeToISO = map[string]string{
	// NANP
	"1": "US",
	// Europe
	"30": "GR",
	"31": "NL",
	"32": "BE",
	"33": "FR",
	"34": "ES",
	"36": "HU",
	"39": "IT",
	"40": "RO",
	"41": "CH",
	"43": "AT",
	"44": "GB",
	"45": "DK",
	"46": "SE",
	"47": "NO",
	"48": "PL",
	"49": "DE",
	// Americas and Asia-Pacific
	"52": "MX",
	"55": "BR",
	"61": "AU",
	"62": "ID",
	"63": "PH",
	"64": "NZ",
	"65": "SG",
	"66": "TH",
	"81": "JP",
	"82": "KR",
	"84": "VN",
	"86": "CN",
	"90": "TR",
	"91": "IN",
	"92": "PK",
	"93": "AF",
	"94": "LK",
	"95": "MM",
	"98": "IR",
	// Africa
	"20":  "EG",
	"212": "MA",
	"213": "DZ",
	"216": "TN",
	"218": "LY",
	"221": "SN",
	"225": "CI",
	"229": "BJ",
	"234": "NG",
	"237": "CM",
	"254": "KE",
	"255": "TZ",
	"256": "UG",
	"260": "ZM",
	"261": "MG",
	"263": "ZW",
	// Russia
	"7": "RU",
}
