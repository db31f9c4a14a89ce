// Package indexnames provides the static ticker-to-display-name lookup the
// REST field-mapping engine consults when a stock_index DataPoint arrives
// without a display name.
package indexnames

// byTicker maps a stock index ticker symbol to its human-readable name. The
// set mirrors the regional coverage of common index feeds: Americas, Europe,
// East Asia, South/Southeast Asia, Oceania, the Middle East and Africa.
var byTicker = map[string]string{
	// Americas
	"^GSPC":  "S&P 500",
	"^DJI":   "Dow Jones Industrial Average",
	"^IXIC":  "Nasdaq Composite",
	"^RUT":   "Russell 2000",
	"^NYA":   "NYSE Composite",
	"^XAX":   "NYSE American Composite",
	"^VIX":   "CBOE Volatility Index",
	"^GSPTSE": "S&P/TSX Composite",
	"^MXX":   "IPC Mexico",
	"^BVSP":  "Bovespa",
	"^MERV":  "MERVAL",
	"^IPSA":  "S&P IPSA",

	// Europe
	"^FTSE":  "FTSE 100",
	"^FTMC":  "FTSE 250",
	"^GDAXI": "DAX",
	"^MDAXI": "MDAX",
	"^FCHI":  "CAC 40",
	"^STOXX50E": "EURO STOXX 50",
	"^STOXX":  "STOXX Europe 600",
	"^AEX":   "AEX",
	"^IBEX":  "IBEX 35",
	"^SSMI":  "Swiss Market Index",
	"^OMXS30": "OMX Stockholm 30",
	"^OMXC25": "OMX Copenhagen 25",
	"^OSEAX": "Oslo All-Share",
	"^BFX":   "BEL 20",
	"^ATX":   "ATX",
	"^PSI20": "PSI 20",
	"^ISEQ":  "ISEQ All-Share",
	"^WIG20": "WIG 20",
	"^BUX":   "BUX",

	// North / East Europe & Russia
	"IMOEX.ME": "MOEX Russia Index",
	"^RTSI":  "RTS Index",

	// Middle East
	"^TA125.TA": "TA-125",
	"^TASI.SR": "Tadawul All Share",
	"^ADI":   "ADX General",
	"^DFMGI": "DFM General",

	// Africa
	"^JN0U.JO": "FTSE/JSE Top 40",
	"^EGX30": "EGX 30",
	"^CASE30": "EGX 30",

	// East Asia
	"^N225":  "Nikkei 225",
	"^TOPX":  "TOPIX",
	"000001.SS": "SSE Composite",
	"399001.SZ": "SZSE Component",
	"^HSI":   "Hang Seng Index",
	"^HSCE":  "Hang Seng China Enterprises",
	"^KS11":  "KOSPI",
	"^KQ11":  "KOSDAQ",
	"^TWII":  "Taiwan Weighted",

	// South / Southeast Asia
	"^BSESN": "BSE Sensex",
	"^NSEI":  "Nifty 50",
	"^NSEBANK": "Nifty Bank",
	"^JKSE":  "Jakarta Composite",
	"^KLSE":  "FTSE Bursa Malaysia KLCI",
	"^STI":   "Straits Times Index",
	"^SET.BK": "SET Index",
	"^PSEI":  "PSEi Composite",
	"^VNINDEX": "VN-Index",

	// Oceania
	"^AXJO":  "S&P/ASX 200",
	"^AORD":  "All Ordinaries",
	"^NZ50":  "S&P/NZX 50",

	// Global / other Yahoo-chart-only entries commonly seen alongside the above
	"^XDB":   "US Dollar Index (British Pound Cross)",
	"^XDE":   "US Dollar Index (Euro Cross)",
	"^XDN":   "US Dollar Index (Yen Cross)",
	"^W5000": "Wilshire 5000",
	"^NYAD":  "NYSE Advance-Decline",
	"^DJT":   "Dow Jones Transportation Average",
	"^DJU":   "Dow Jones Utility Average",
	"^DJA":   "Dow Jones Composite Average",
	"^SOX":   "PHLX Semiconductor Index",
	"^NBI":   "Nasdaq Biotechnology Index",
	"^SPGSCI": "S&P GSCI",
	"^SPXEW": "S&P 500 Equal Weight",
	"^OEX":   "S&P 100",
	"^MID":   "S&P MidCap 400",
	"^SML":   "S&P SmallCap 600",
	"^NDX":   "Nasdaq 100",
	"^DWCF":  "Dow Jones U.S. Total Stock Market",
	"^XU100.IS": "BIST 100",
	"^CNX100": "Nifty 100",
	"^CRSLDX": "Nifty 500",
	"^BVLG":  "PSI Geral",
	"^SSE50": "SSE 50",
	"^CSI300": "CSI 300",
	"^KOSPI200": "KOSPI 200",
	"^TWOII": "Taiwan OTC Index",
	"^TA35.TA": "TA-35",
}

// Lookup returns the display name for a stock index ticker, and whether it
// was found.
func Lookup(symbol string) (string, bool) {
	name, ok := byTicker[symbol]
	return name, ok
}
