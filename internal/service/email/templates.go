package email

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.5; color: #1f2937; max-width: 560px; margin: 0 auto; padding: 16px; }
        .header { background: #0f766e; color: #fff; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { padding: 24px; border: 1px solid #e5e7eb; border-top: none; }
        .row { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid #f3f4f6; }
        .label { color: #6b7280; }
        .qr { text-align: center; margin: 16px 0; }
        .footer { font-size: 12px; color: #9ca3af; padding: 12px 0; text-align: center; }
    </style>
</head>
<body>
    <div class="header"><h2 style="margin:0">{{.Subject}}</h2></div>
    <div class="content">{{template "content" .}}</div>
    <div class="footer">ParkFlow · <a href="{{.BaseURL}}">{{.BaseURL}}</a></div>
</body>
</html>{{end}}`

var contentTemplates = map[string]string{
	TemplateBookingConfirmed: `{{define "content"}}
<p>Hi {{.UserName}}, your parking slot is reserved.</p>
<div class="row"><span class="label">Booking</span><span>{{.BookingID}}</span></div>
<div class="row"><span class="label">Slot</span><span>{{.SlotCode}}</span></div>
<div class="row"><span class="label">From</span><span>{{.StartsAt}}</span></div>
<div class="row"><span class="label">Until</span><span>{{.EndsAt}}</span></div>
<div class="row"><span class="label">Paid</span><span>{{.Amount}} {{.Currency}}</span></div>
{{if .QRImage}}<div class="qr"><img src="{{.QRImage}}" width="240" alt="Entry QR code"></div>{{end}}
<p>Show the QR code at the gate to enter and exit.</p>
{{end}}`,

	TemplateBookingCheckedOut: `{{define "content"}}
<p>Hi {{.UserName}}, thanks for parking with us.</p>
<div class="row"><span class="label">Parked</span><span>{{.ParkedMinutes}} min</span></div>
<div class="row"><span class="label">Booked</span><span>{{.BookedMinutes}} min</span></div>
<div class="row"><span class="label">Overtime</span><span>{{.OvertimeAmount}}</span></div>
<div class="row"><span class="label">Penalty</span><span>{{.PenaltyAmount}}</span></div>
<div class="row"><span class="label">Total</span><span>{{.TotalAmount}} {{.Currency}}</span></div>
<p>No refunds are issued for early exit.</p>
{{end}}`,

	TemplateBookingCancelled: `{{define "content"}}
<p>Hi {{.UserName}}, booking {{.BookingID}} was cancelled.</p>
{{if .RefundAmount}}<p>A refund of {{.RefundAmount}} {{.Currency}} has been requested.</p>{{end}}
{{end}}`,

	TemplateBookingExpired: `{{define "content"}}
<p>Hi {{.UserName}}, booking {{.BookingID}} expired because the vehicle did not check in before {{.EndsAt}}.</p>
{{end}}`,

	TemplateSubscriptionActive: `{{define "content"}}
<p>Hi {{.UserName}}, your {{.PlanName}} pass is active until {{.EndsAt}}.</p>
{{if .QRImage}}<div class="qr"><img src="{{.QRImage}}" width="240" alt="Subscriber pass"></div>{{end}}
{{end}}`,
}
