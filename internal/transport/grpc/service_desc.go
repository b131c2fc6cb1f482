package grpc

import (
	"context"

	"google.golang.org/grpc"

	"salon/backend/internal/api"
)

const ServiceName = "salon.v1.AppointmentsService"

type AppointmentsServiceServer interface {
	GetSlotGrid(context.Context, *api.SlotGridRequest) (*api.SlotGridResponse, error)
	ListAvailableStaff(context.Context, *api.AvailableStaffRequest) (*api.AvailableStaffResponse, error)
	CreateAppointment(context.Context, *api.CreateAppointmentRequest) (*api.AppointmentResponse, error)
	UpdateAppointment(context.Context, *api.UpdateAppointmentRequest) (*api.AppointmentResponse, error)
	CancelAppointment(context.Context, *api.AppointmentIDRequest) (*api.Empty, error)
	AttendAppointment(context.Context, *api.AttendAppointmentRequest) (*api.AttendAppointmentResponse, error)
	GetAppointment(context.Context, *api.AppointmentIDRequest) (*api.AppointmentResponse, error)
	ListAppointments(context.Context, *api.ListAppointmentsRequest) (*api.ListAppointmentsResponse, error)
	ListLocations(context.Context, *api.ListLocationsRequest) (*api.ListLocationsResponse, error)
	ListServices(context.Context, *api.LocationRequest) (*api.ListServicesResponse, error)
	ListStaff(context.Context, *api.LocationRequest) (*api.ListStaffResponse, error)
	AddStaff(context.Context, *api.AddStaffRequest) (*api.StaffResponse, error)
	SetStaffActive(context.Context, *api.SetStaffActiveRequest) (*api.Empty, error)
}

var AppointmentsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetSlotGrid", AppointmentsServiceServer.GetSlotGrid),
		unary("ListAvailableStaff", AppointmentsServiceServer.ListAvailableStaff),
		unary("CreateAppointment", AppointmentsServiceServer.CreateAppointment),
		unary("UpdateAppointment", AppointmentsServiceServer.UpdateAppointment),
		unary("CancelAppointment", AppointmentsServiceServer.CancelAppointment),
		unary("AttendAppointment", AppointmentsServiceServer.AttendAppointment),
		unary("GetAppointment", AppointmentsServiceServer.GetAppointment),
		unary("ListAppointments", AppointmentsServiceServer.ListAppointments),
		unary("ListLocations", AppointmentsServiceServer.ListLocations),
		unary("ListServices", AppointmentsServiceServer.ListServices),
		unary("ListStaff", AppointmentsServiceServer.ListStaff),
		unary("AddStaff", AppointmentsServiceServer.AddStaff),
		unary("SetStaffActive", AppointmentsServiceServer.SetStaffActive),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salon/v1/appointments",
}

func RegisterAppointmentsServiceServer(s grpc.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&AppointmentsServiceDesc, srv)
}

// FullMethod returns the invocation path of an AppointmentsService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(AppointmentsServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AppointmentsServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}
