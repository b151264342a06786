// Package chronobookv1 defines the chronobook.v1.BookingService wire contract. Messages
// travel as JSON over gRPC using the "json" content subtype.
package chronobookv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const ServiceName = "chronobook.v1.BookingService"

const (
	BookingService_RequestBooking_FullMethodName      = "/chronobook.v1.BookingService/RequestBooking"
	BookingService_UpdateBookingStatus_FullMethodName = "/chronobook.v1.BookingService/UpdateBookingStatus"
	BookingService_RescheduleBooking_FullMethodName   = "/chronobook.v1.BookingService/RescheduleBooking"
	BookingService_MarkPayment_FullMethodName         = "/chronobook.v1.BookingService/MarkPayment"
	BookingService_GetBooking_FullMethodName          = "/chronobook.v1.BookingService/GetBooking"
	BookingService_ListBookings_FullMethodName        = "/chronobook.v1.BookingService/ListBookings"
	BookingService_ComputeFreeSlots_FullMethodName    = "/chronobook.v1.BookingService/ComputeFreeSlots"
)

type Booking struct {
	Id                string                 `json:"id"`
	SeriesId          string                 `json:"series_id,omitempty"`
	LocationId        string                 `json:"location_id"`
	ServiceId         string                 `json:"service_id"`
	StaffId           string                 `json:"staff_id"`
	CustomerId        string                 `json:"customer_id"`
	StartTime         *timestamppb.Timestamp `json:"start_time"`
	EndTime           *timestamppb.Timestamp `json:"end_time"`
	Status            string                 `json:"status"`
	PaymentStatus     string                 `json:"payment_status"`
	PaymentMethod     string                 `json:"payment_method"`
	TotalPrice        float64                `json:"total_price"`
	PaidAmount        float64                `json:"paid_amount"`
	RecurrencePattern string                 `json:"recurrence_pattern"`
	Notes             string                 `json:"notes,omitempty"`
	CreatedAt         *timestamppb.Timestamp `json:"created_at"`
	UpdatedAt         *timestamppb.Timestamp `json:"updated_at"`
}

type TimeSlot struct {
	StartTime *timestamppb.Timestamp `json:"start_time"`
	EndTime   *timestamppb.Timestamp `json:"end_time"`
}

type RequestBookingRequest struct {
	CustomerId        string                 `json:"customer_id"`
	ServiceId         string                 `json:"service_id"`
	StaffId           string                 `json:"staff_id"`
	LocationId        string                 `json:"location_id"`
	StartTime         *timestamppb.Timestamp `json:"start_time"`
	RecurrencePattern string                 `json:"recurrence_pattern,omitempty"`
	PaymentMethod     string                 `json:"payment_method,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
}

type RequestBookingResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type UpdateBookingStatusRequest struct {
	BookingId string `json:"booking_id"`
	Status    string `json:"status"`
}

type UpdateBookingStatusResponse struct {
	Booking *Booking `json:"booking"`
}

type RescheduleBookingRequest struct {
	BookingId string                 `json:"booking_id"`
	StartTime *timestamppb.Timestamp `json:"start_time"`
}

type RescheduleBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type MarkPaymentRequest struct {
	BookingId     string  `json:"booking_id"`
	PaymentStatus string  `json:"payment_status"`
	Amount        float64 `json:"amount,omitempty"`
}

type MarkPaymentResponse struct {
	Booking *Booking `json:"booking"`
}

type GetBookingRequest struct {
	BookingId string `json:"booking_id"`
}

type GetBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type ListBookingsRequest struct {
	StaffId     string                 `json:"staff_id,omitempty"`
	CustomerId  string                 `json:"customer_id,omitempty"`
	LocationId  string                 `json:"location_id,omitempty"`
	WindowStart *timestamppb.Timestamp `json:"window_start,omitempty"`
	WindowEnd   *timestamppb.Timestamp `json:"window_end,omitempty"`
	Statuses    []string               `json:"statuses,omitempty"`
	Limit       int32                  `json:"limit,omitempty"`
}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type ComputeFreeSlotsRequest struct {
	StaffId    string `json:"staff_id"`
	LocationId string `json:"location_id"`
	ServiceId  string `json:"service_id"`
	// Date is a calendar day formatted as YYYY-MM-DD.
	Date string `json:"date"`
}

type ComputeFreeSlotsResponse struct {
	Slots []*TimeSlot `json:"slots"`
}

type BookingServiceServer interface {
	RequestBooking(context.Context, *RequestBookingRequest) (*RequestBookingResponse, error)
	UpdateBookingStatus(context.Context, *UpdateBookingStatusRequest) (*UpdateBookingStatusResponse, error)
	RescheduleBooking(context.Context, *RescheduleBookingRequest) (*RescheduleBookingResponse, error)
	MarkPayment(context.Context, *MarkPaymentRequest) (*MarkPaymentResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*GetBookingResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
	ComputeFreeSlots(context.Context, *ComputeFreeSlotsRequest) (*ComputeFreeSlotsResponse, error)
}

// UnimplementedBookingServiceServer can be embedded to stay forward compatible.
type UnimplementedBookingServiceServer struct{}

func (UnimplementedBookingServiceServer) RequestBooking(context.Context, *RequestBookingRequest) (*RequestBookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestBooking not implemented")
}

func (UnimplementedBookingServiceServer) UpdateBookingStatus(context.Context, *UpdateBookingStatusRequest) (*UpdateBookingStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateBookingStatus not implemented")
}

func (UnimplementedBookingServiceServer) RescheduleBooking(context.Context, *RescheduleBookingRequest) (*RescheduleBookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RescheduleBooking not implemented")
}

func (UnimplementedBookingServiceServer) MarkPayment(context.Context, *MarkPaymentRequest) (*MarkPaymentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MarkPayment not implemented")
}

func (UnimplementedBookingServiceServer) GetBooking(context.Context, *GetBookingRequest) (*GetBookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBooking not implemented")
}

func (UnimplementedBookingServiceServer) ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListBookings not implemented")
}

func (UnimplementedBookingServiceServer) ComputeFreeSlots(context.Context, *ComputeFreeSlotsRequest) (*ComputeFreeSlotsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ComputeFreeSlots not implemented")
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingService_ServiceDesc, srv)
}

// unary builds a method handler for a request type Req.
func unary[Req any, Resp any](fullMethod string, call func(BookingServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var BookingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestBooking", Handler: unary(BookingService_RequestBooking_FullMethodName, BookingServiceServer.RequestBooking)},
		{MethodName: "UpdateBookingStatus", Handler: unary(BookingService_UpdateBookingStatus_FullMethodName, BookingServiceServer.UpdateBookingStatus)},
		{MethodName: "RescheduleBooking", Handler: unary(BookingService_RescheduleBooking_FullMethodName, BookingServiceServer.RescheduleBooking)},
		{MethodName: "MarkPayment", Handler: unary(BookingService_MarkPayment_FullMethodName, BookingServiceServer.MarkPayment)},
		{MethodName: "GetBooking", Handler: unary(BookingService_GetBooking_FullMethodName, BookingServiceServer.GetBooking)},
		{MethodName: "ListBookings", Handler: unary(BookingService_ListBookings_FullMethodName, BookingServiceServer.ListBookings)},
		{MethodName: "ComputeFreeSlots", Handler: unary(BookingService_ComputeFreeSlots_FullMethodName, BookingServiceServer.ComputeFreeSlots)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chronobook/v1/booking.proto",
}

type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*RequestBookingResponse, error) {
	return invoke[RequestBookingResponse](ctx, c.cc, BookingService_RequestBooking_FullMethodName, in, opts)
}

func (c *BookingServiceClient) UpdateBookingStatus(ctx context.Context, in *UpdateBookingStatusRequest, opts ...grpc.CallOption) (*UpdateBookingStatusResponse, error) {
	return invoke[UpdateBookingStatusResponse](ctx, c.cc, BookingService_UpdateBookingStatus_FullMethodName, in, opts)
}

func (c *BookingServiceClient) RescheduleBooking(ctx context.Context, in *RescheduleBookingRequest, opts ...grpc.CallOption) (*RescheduleBookingResponse, error) {
	return invoke[RescheduleBookingResponse](ctx, c.cc, BookingService_RescheduleBooking_FullMethodName, in, opts)
}

func (c *BookingServiceClient) MarkPayment(ctx context.Context, in *MarkPaymentRequest, opts ...grpc.CallOption) (*MarkPaymentResponse, error) {
	return invoke[MarkPaymentResponse](ctx, c.cc, BookingService_MarkPayment_FullMethodName, in, opts)
}

func (c *BookingServiceClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*GetBookingResponse, error) {
	return invoke[GetBookingResponse](ctx, c.cc, BookingService_GetBooking_FullMethodName, in, opts)
}

func (c *BookingServiceClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c.cc, BookingService_ListBookings_FullMethodName, in, opts)
}

func (c *BookingServiceClient) ComputeFreeSlots(ctx context.Context, in *ComputeFreeSlotsRequest, opts ...grpc.CallOption) (*ComputeFreeSlotsResponse, error) {
	return invoke[ComputeFreeSlotsResponse](ctx, c.cc, BookingService_ComputeFreeSlots_FullMethodName, in, opts)
}
