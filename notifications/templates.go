package notifications

import (
	"fmt"
	"html"
	"time"
)

type Email struct {
	Subject string
	HTML    string
}

func OnboardingComplete(communityName string) Email {
	return Email{
		Subject: "Your community can now accept payments",
		HTML: fmt.Sprintf(
			"<h1>You're all set!</h1><p>Payment onboarding for <b>%s</b> is complete. Members can now book and pay for private lessons.</p>",
			html.EscapeString(communityName),
		),
	}
}

func BookingConfirmed(studentName, lessonTitle string, at time.Time, price, currency string) Email {
	return Email{
		Subject: "Booking confirmed: " + lessonTitle,
		HTML: fmt.Sprintf(
			"<h1>Booking confirmed</h1><p>Hi %s,</p><p>Your lesson <b>%s</b> is booked for %s.</p><p>Amount paid: %s %s</p>",
			html.EscapeString(studentName),
			html.EscapeString(lessonTitle),
			at.Format("Monday, January 2 2006 at 15:04 MST"),
			price,
			currency,
		),
	}
}

func NewBookingForTeacher(studentName, lessonTitle string, at time.Time) Email {
	return Email{
		Subject: "New booking: " + lessonTitle,
		HTML: fmt.Sprintf(
			"<h1>New booking</h1><p>%s booked <b>%s</b> for %s.</p>",
			html.EscapeString(studentName),
			html.EscapeString(lessonTitle),
			at.Format("Monday, January 2 2006 at 15:04 MST"),
		),
	}
}

func LessonReminder(studentName, lessonTitle string, at time.Time) Email {
	return Email{
		Subject: "Reminder: Your lesson starts in 1 hour!",
		HTML: fmt.Sprintf(
			"<h1>Lesson Reminder</h1><p>Hi %s,</p><p>This is a friendly reminder that <b>%s</b> starts at %s.</p>",
			html.EscapeString(studentName),
			html.EscapeString(lessonTitle),
			at.Format(time.Kitchen),
		),
	}
}
