package triage

import (
	"time"

	"triage_server/core/domain"
)

// SampleEmails returns realistic support emails received at now.
func SampleEmails(now time.Time) []domain.RawEmail {
	return []domain.RawEmail{
		{
			Sender:       "john.customer@email.com",
			SenderName:   "John Customer",
			Subject:      "URGENT: Order #12345 not delivered - need immediate help",
			Body:         "Hi, I placed order #12345 three weeks ago and still haven't received it. This is extremely urgent as it was a gift for my daughter's birthday which is tomorrow. I've tried calling but can't get through. My alternate email is john.backup@gmail.com and phone is +1-555-0123. Please help immediately!",
			DateReceived: now,
		},
		{
			Sender:       "sarah.jones@company.com",
			SenderName:   "Sarah Jones",
			Subject:      "Billing question about recent charge",
			Body:         "Hello, I noticed a charge of $29.99 on my credit card from your company but I don't remember making this purchase. Could you please help me understand what this charge is for? My order reference might be ORD-7891. Thanks!",
			DateReceived: now,
		},
		{
			Sender:       "mike.developer@tech.com",
			SenderName:   "Mike Developer",
			Subject:      "Feature request: API rate limiting",
			Body:         "Hi team, I'm a developer using your API and would love to see better rate limiting controls. Currently, I hit limits unexpectedly which breaks my application. Could you add configurable rate limits per API key? This would help many developers like me. Contact me at mike.dev@tech.com for more details.",
			DateReceived: now,
		},
		{
			Sender:       "angry.customer@email.com",
			SenderName:   "Frustrated Customer",
			Subject:      "Terrible service - demanding refund NOW",
			Body:         "I am absolutely furious with your service. Nothing works as advertised and your support is useless. I want a full refund immediately or I'm reporting to BBB. This is the worst experience I've ever had. Call me at 555-9876 to resolve this NOW!",
			DateReceived: now,
		},
		{
			Sender:       "happy.user@domain.com",
			SenderName:   "Happy User",
			Subject:      "Love the new features!",
			Body:         "Just wanted to say thank you for the recent updates. The new dashboard is amazing and has made my workflow so much better. Keep up the excellent work! You guys are the best.",
			DateReceived: now,
		},
	}
}
