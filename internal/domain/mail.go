package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type BookingCreatedMailData struct {
	FullName       string `json:"fullName"`
	InstructorName string `json:"instructorName"`
	Day            string `json:"day"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
}

type BookingCancelledMailData struct {
	FullName       string `json:"fullName"`
	InstructorName string `json:"instructorName"`
	Day            string `json:"day"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
}
