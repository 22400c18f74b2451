package vectorizer

// typoTable maps common words to misspellings seen in portal chat logs.
// Lookup is case-insensitive; words absent from the table are left unchanged.
var typoTable = map[string][]string{
	"hello":     {"helo", "hallo", "hellow"},
	"hi":        {"hii", "hy"},
	"thanks":    {"thanx", "thx", "tanks"},
	"thank":     {"thnk", "tank"},
	"please":    {"pls", "plz", "pleas"},
	"account":   {"acount", "accont", "acct"},
	"balance":   {"ballance", "balence", "balanse"},
	"payment":   {"payement", "paymnet", "pymt"},
	"statement": {"statment", "statemnt"},
	"report":    {"reprot", "repot"},
	"upload":    {"uplaod", "upoad"},
	"password":  {"pasword", "passwrd", "passowrd"},
	"reset":     {"rest", "resett"},
	"garbage":   {"garbge", "garbadge"},
	"schedule":  {"schedual", "shedule", "scedule"},
	"office":    {"ofice", "offce"},
	"hours":     {"hrs", "houres"},
	"permit":    {"permitt", "permti"},
	"status":    {"staus", "statis"},
	"water":     {"watr", "wter"},
	"bill":      {"bil", "bll"},
	"when":      {"wen", "whn"},
	"where":     {"were", "whre"},
	"what":      {"wat", "whta"},
	"help":      {"hlep", "hepl"},
}

// synonymTable maps words to interchangeable alternatives. Same lookup rules
// as typoTable.
var synonymTable = map[string][]string{
	"hello":     {"hey", "greetings"},
	"hi":        {"hello", "hey"},
	"goodbye":   {"bye", "farewell"},
	"bye":       {"goodbye", "farewell"},
	"thanks":    {"thank you", "cheers"},
	"balance":   {"amount due", "outstanding amount"},
	"payment":   {"transaction", "deposit"},
	"statement": {"invoice", "summary"},
	"report":    {"complaint", "issue"},
	"upload":    {"submit", "send"},
	"password":  {"passcode", "credentials"},
	"reset":     {"recover", "change"},
	"garbage":   {"trash", "waste", "refuse"},
	"schedule":  {"timetable", "calendar"},
	"office":    {"branch", "department"},
	"hours":     {"opening times", "times"},
	"permit":    {"license", "authorization"},
	"status":    {"state", "progress"},
	"help":      {"assist", "support"},
	"pay":       {"settle", "cover"},
	"need":      {"want", "require"},
	"show":      {"display", "give"},
	"check":     {"verify", "look up"},
}
