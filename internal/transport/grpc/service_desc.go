package grpc

import (
	"context"

	"google.golang.org/grpc"

	apiv1 "slotkeeper/backend/internal/api/v1"
)

const ServiceName = "slotkeeper.v1.SchedulingService"

type SchedulingServiceServer interface {
	GetAvailableSlots(context.Context, *apiv1.GetAvailableSlotsRequest) (*apiv1.GetAvailableSlotsResponse, error)
	NextAvailableSlot(context.Context, *apiv1.NextAvailableSlotRequest) (*apiv1.NextAvailableSlotResponse, error)
	CreateAppointment(context.Context, *apiv1.CreateAppointmentRequest) (*apiv1.AppointmentResponse, error)
	RescheduleAppointment(context.Context, *apiv1.RescheduleAppointmentRequest) (*apiv1.AppointmentResponse, error)
	CancelAppointment(context.Context, *apiv1.CancelAppointmentRequest) (*apiv1.AppointmentResponse, error)
	UpdateStatus(context.Context, *apiv1.UpdateStatusRequest) (*apiv1.AppointmentResponse, error)
	GetAppointment(context.Context, *apiv1.GetAppointmentRequest) (*apiv1.AppointmentResponse, error)
	ListAppointments(context.Context, *apiv1.ListAppointmentsRequest) (*apiv1.ListAppointmentsResponse, error)
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetAvailableSlots", SchedulingServiceServer.GetAvailableSlots),
		unaryMethod("NextAvailableSlot", SchedulingServiceServer.NextAvailableSlot),
		unaryMethod("CreateAppointment", SchedulingServiceServer.CreateAppointment),
		unaryMethod("RescheduleAppointment", SchedulingServiceServer.RescheduleAppointment),
		unaryMethod("CancelAppointment", SchedulingServiceServer.CancelAppointment),
		unaryMethod("UpdateStatus", SchedulingServiceServer.UpdateStatus),
		unaryMethod("GetAppointment", SchedulingServiceServer.GetAppointment),
		unaryMethod("ListAppointments", SchedulingServiceServer.ListAppointments),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotkeeper/v1/scheduling",
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServiceServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryMethod[Req, Resp any](name string, call func(SchedulingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
