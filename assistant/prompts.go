package assistant

import "fmt"

var prompts = map[Step]string{
	StepGreeting: "Hi! I can help you find a property. Are you looking to buy, rent, sell or invest?",
	StepLocation: "Great. Which area or city are you interested in?",
	StepBudget:   "What is your budget? For example \"5M to 15M\" or \"2.5B\".",
	StepBedrooms: "How many bedrooms do you need? (1-10, or \"studio\")",
	StepName:     "Thanks. May I have your name?",
	StepPhone:    "What phone number can our agent reach you on?",
	StepEmail:    "And your email address?",
	StepTimeline: "Last question: when are you planning to move? (immediately, 1-3 months, 3-6 months, 6+ months, or just browsing)",
}

var reprompts = map[Step]string{
	StepGreeting: "Sorry, I didn't catch that. Are you looking to buy, rent, sell or invest?",
	StepLocation: "Please tell me an area or city name, for example \"Canggu\" or \"South Jakarta\".",
	StepBudget:   "I couldn't read a budget there. Try something like \"500K to 1M\" or \"3M\".",
	StepBedrooms: "Please give a number of bedrooms between 1 and 10, or say \"studio\".",
	StepName:     "Please type your name (letters only).",
	StepPhone:    "That doesn't look like a phone number. Please include 7 to 15 digits.",
	StepEmail:    "That doesn't look like an email address. Please try again.",
	StepTimeline: "Please choose one: immediately, 1-3 months, 3-6 months, 6+ months, or just browsing.",
}

func completionText(d ChatUserData) string {
	name := d.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Thank you, %s! An agent will contact you shortly about properties in %s.", name, d.Location)
}
