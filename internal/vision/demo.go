package vision

import (
	"context"

	"bimschedule/internal"
)

const demoReply = `[
  {"code": "WD-01", "area": "Kitchen", "location": "Floor", "finish": "Grade A Oak Flooring", "type": "Oak", "pricePerSqm": {"low": 45, "mid": 65, "high": 85}},
  {"code": "WD-02", "area": "Living Room", "location": "Fireplace surround", "finish": "Polished Marble Countertop", "type": "Marble", "pricePerSqm": {"low": 70, "mid": 100, "high": 150}},
  {"code": "WD-03", "area": "Kitchen", "location": "Appliances", "finish": "Stainless Steel Appliances", "type": "Stainless Steel", "pricePerSqm": {"low": 20, "mid": 30, "high": 40}}
]`

// demoClient answers without network access, for DEMO_MODE.
type demoClient struct{}

func (demoClient) DescribeImage(context.Context, internal.ImageInput) (string, error) {
	return demoReply, nil
}

func (demoClient) Ping(context.Context) (string, error) {
	return "Hello from demo mode", nil
}
