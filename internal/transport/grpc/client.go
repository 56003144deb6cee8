package grpc

import (
	"context"

	"google.golang.org/grpc"

	apiv1 "slotkeeper/backend/internal/api/v1"
)

// Client calls SchedulingService over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAvailableSlots(ctx context.Context, in *apiv1.GetAvailableSlotsRequest, opts ...grpc.CallOption) (*apiv1.GetAvailableSlotsResponse, error) {
	return invoke[apiv1.GetAvailableSlotsResponse](ctx, c.cc, "GetAvailableSlots", in, opts...)
}

func (c *Client) NextAvailableSlot(ctx context.Context, in *apiv1.NextAvailableSlotRequest, opts ...grpc.CallOption) (*apiv1.NextAvailableSlotResponse, error) {
	return invoke[apiv1.NextAvailableSlotResponse](ctx, c.cc, "NextAvailableSlot", in, opts...)
}

func (c *Client) CreateAppointment(ctx context.Context, in *apiv1.CreateAppointmentRequest, opts ...grpc.CallOption) (*apiv1.AppointmentResponse, error) {
	return invoke[apiv1.AppointmentResponse](ctx, c.cc, "CreateAppointment", in, opts...)
}

func (c *Client) RescheduleAppointment(ctx context.Context, in *apiv1.RescheduleAppointmentRequest, opts ...grpc.CallOption) (*apiv1.AppointmentResponse, error) {
	return invoke[apiv1.AppointmentResponse](ctx, c.cc, "RescheduleAppointment", in, opts...)
}

func (c *Client) CancelAppointment(ctx context.Context, in *apiv1.CancelAppointmentRequest, opts ...grpc.CallOption) (*apiv1.AppointmentResponse, error) {
	return invoke[apiv1.AppointmentResponse](ctx, c.cc, "CancelAppointment", in, opts...)
}

func (c *Client) UpdateStatus(ctx context.Context, in *apiv1.UpdateStatusRequest, opts ...grpc.CallOption) (*apiv1.AppointmentResponse, error) {
	return invoke[apiv1.AppointmentResponse](ctx, c.cc, "UpdateStatus", in, opts...)
}

func (c *Client) GetAppointment(ctx context.Context, in *apiv1.GetAppointmentRequest, opts ...grpc.CallOption) (*apiv1.AppointmentResponse, error) {
	return invoke[apiv1.AppointmentResponse](ctx, c.cc, "GetAppointment", in, opts...)
}

func (c *Client) ListAppointments(ctx context.Context, in *apiv1.ListAppointmentsRequest, opts ...grpc.CallOption) (*apiv1.ListAppointmentsResponse, error) {
	return invoke[apiv1.ListAppointmentsResponse](ctx, c.cc, "ListAppointments", in, opts...)
}
