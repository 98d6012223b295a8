package classifier

import (
	"regexp"
	"strings"
)

const (
	taskConfidence     = 0.85
	metaConfidence     = 0.9
	greetingConfidence = 0.95

	complexConfidence  = 0.85
	mediumConfidence   = 0.8
	simpleConfidence   = 0.9
	wordBandConfidence = 0.6
)

// Task phrasing must be checked before meta: "summarize the deal structure"
// is work on deal data, "summarize our conversation" is about the session.
var taskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(summari[sz]e|draft|write|create|generate|prepare|compile|extract|produce|build|outline|put together)\b.*\b(deal|documents?|reports?|memo|findings?|financials?|structure|data ?room|cim|model|contracts?|agreements?|risks?|table|summary|irl|q&a|term sheet|teaser|diligence|checklist|list|overview|email|letter)\b`),
	regexp.MustCompile(`(?i)\b(add|update|mark|assign|close|resolve)\s+(a\s+|an\s+|the\s+|this\s+)?(irl item|q&a item|question|finding|request|item)\b`),
	regexp.MustCompile(`(?i)\b(give me|show me|i need)\s+(a|an)\s+(summary|list|table|breakdown|memo|report)\b`),
	regexp.MustCompile(`(?i)\bexport\b.*\b(pdf|docx|xlsx|excel|word|csv)\b`),
}

var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(our|this|my)\s+(conversation|chat|discussion|session|thread)\b`),
	regexp.MustCompile(`(?i)\b(what can you do|who are you|what are you|how do you work|what do you know|your capabilities|are you an? (ai|bot|robot|human))\b`),
	regexp.MustCompile(`(?i)\bwhat did (i|we|you) (ask|say|discuss|mention|talk about)\b`),
	regexp.MustCompile(`(?i)\b(previous|last|earlier|your)\s+(question|answer|message|response|reply)\b`),
	regexp.MustCompile(`(?i)\b(repeat|rephrase|clarify)\s+(that|your (last )?answer)\b|\bexplain your (last )?answer\b`),
	regexp.MustCompile(`(?i)\b(how (do|can|should) i use|help me use)\s+(you|this|the assistant)\b`),
}

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\W*(hi|hello|hey|hiya|howdy|greetings|yo|good (morning|afternoon|evening|day))([\s,]+(there|team|all|everyone|folks|again|guys|assistant))*\W*$`),
	regexp.MustCompile(`(?i)^\W*(thanks|thank you|thx|ty|cheers|much appreciated)(( very| so) much)?([\s,]+(a lot|again|team|all))*\W*$`),
	regexp.MustCompile(`(?i)^\W*(bye|goodbye|see you( later| soon)?|talk (to you )?later|have a (good|great|nice) (day|one|evening))\W*$`),
	regexp.MustCompile(`(?i)^\W*(ok|okay|great|cool|perfect|awesome|got it|sounds good|nice)\W*$`),
}

// matchIntent applies the families in order task, meta, greeting. Greeting is
// skipped when the text asks a question.
func matchIntent(text string) (Intent, float64, Method) {
	if anyMatch(taskPatterns, text) {
		return IntentTask, taskConfidence, MethodRegex
	}
	if anyMatch(metaPatterns, text) {
		return IntentMeta, metaConfidence, MethodRegex
	}
	if !strings.Contains(text, "?") && anyMatch(greetingPatterns, text) {
		return IntentGreeting, greetingConfidence, MethodRegex
	}
	return IntentFactual, defaultConfidence, MethodDefault
}

var (
	crossDocumentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(across|between|among)\s+(all\s+)?(the\s+|these\s+|our\s+)?(documents|docs|files|sources|reports|versions|data ?room)\b`),
		regexp.MustCompile(`(?i)\b(cross[- ]?reference|reconcile|reconciliation|triangulate)\b`),
		regexp.MustCompile(`(?i)\b(all|every|each)\s+(of the\s+)?(documents|docs|files|reports)\b`),
	}
	financialTermPattern = regexp.MustCompile(`(?i)\b(revenue|revenues|ebitda|margins?|cash ?flow|profit|income|earnings|opex|capex|debt|arr|mrr|burn|sales|costs?|expenses)\b`)
	periodPattern        = regexp.MustCompile(`(?i)\b(fy|q[1-4]|h[12])\s?'?\d{2,4}\b|\b(19|20)\d{2}\b|\b(last|past|previous|prior|next)\s+(\d+|two|three|four|five)?\s*(years?|quarters?|months?)\b`)
	trendPatterns        = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(year[- ]over[- ]year|yoy|y/y|quarter[- ]over[- ]quarter|qoq|cagr|month[- ]over[- ]month|mom)\b`),
		regexp.MustCompile(`(?i)\btrends?\s+(over|across|in)\b`),
	}
	anomalyPattern = regexp.MustCompile(`(?i)\b(anomal(y|ies|ous)|outliers?|red flags?|unusual|irregularit(y|ies)|discrepanc(y|ies)|inconsistenc(y|ies)|inconsistent|contradict(s|ion|ions|ory)?)\b`)

	mediumPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(compare|comparison|summari[sz]e|summary|list|explain|describe|outline|overview|breakdown|break down|walk me through)\b`),
		regexp.MustCompile(`(?i)\b(document|report|cim|memo|contract|agreement|spreadsheet|deck|presentation|term sheet|page \d+|section \d+(\.\d+)*)\b|\.(pdf|xlsx|docx|pptx)\b`),
		regexp.MustCompile(`(?i)\bvs\.?(\s|$)|\bversus\b`),
	}

	simplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\W*(what|who|where|when)('s|\s+(is|are|was|were))\s+[\w\s'&.,-]+\W*$`),
	}
)

// matchComplexity classifies by ordered families, then by word-count bands.
func matchComplexity(text string, simpleCeiling int) (Complexity, float64) {
	words := len(strings.Fields(text))

	if anyMatch(crossDocumentPatterns, text) ||
		(financialTermPattern.MatchString(text) && periodPattern.MatchString(text)) ||
		anyMatch(trendPatterns, text) ||
		anomalyPattern.MatchString(text) {
		return ComplexityComplex, complexConfidence
	}

	if anyMatch(mediumPatterns, text) {
		return ComplexityMedium, mediumConfidence
	}

	if words <= simpleCeiling {
		if (!strings.Contains(text, "?") && anyMatch(greetingPatterns, text)) || anyMatch(simplePatterns, text) {
			return ComplexitySimple, simpleConfidence
		}
	}

	switch {
	case words < 10:
		return ComplexitySimple, wordBandConfidence
	case words <= 30:
		return ComplexityMedium, wordBandConfidence
	default:
		return ComplexityComplex, wordBandConfidence
	}
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
