package vocab

// lprnetTokens is the class order of the bundled LPRNet plate model, trained on
// Chinese plates: digits, province tags, the police tag, letters, then blank.
var lprnetTokens = []string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"<Anhui>", "<Beijing>", "<Chongqing>", "<Fujian>", "<Gansu>",
	"<Guangdong>", "<Guangxi>", "<Guizhou>", "<Hainan>", "<Hebei>",
	"<Heilongjiang>", "<Henan>", "<HongKong>", "<Hubei>", "<Hunan>",
	"<InnerMongolia>", "<Jiangsu>", "<Jiangxi>", "<Jilin>", "<Liaoning>",
	"<Macau>", "<Ningxia>", "<Qinghai>", "<Shaanxi>", "<Shandong>",
	"<Shanghai>", "<Shanxi>", "<Sichuan>", "<Tianjin>", "<Tibet>",
	"<Xinjiang>", "<Yunnan>", "<Zhejiang>", "<police>",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	DefaultBlank,
}

// LPRNet returns the built-in 71-class table.
func LPRNet() (*Table, error) {
	return FromList(lprnetTokens, DefaultBlank)
}
