// Command facility-client is an interactive CLI for the facility
// booking server.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"facilityd/internal/config"
	"facilityd/internal/protocol"
	"facilityd/internal/rpcclient"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "facility-client",
		Short: "Interactive client for the facility booking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (falls back to FACILITY_CLIENT_* environment variables)")
	return cmd
}

func runCLI(configPath string) error {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := rpcclient.New(cfg.ServerAddr, time.Duration(cfg.TimeoutMS)*time.Millisecond, cfg.Retries)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerAddr, err)
	}
	defer client.Close()
	client.DropRate = cfg.DropRate

	fmt.Printf("Connected to server at %s\n", cfg.ServerAddr)
	fmt.Println("Facility Booking System Client")
	fmt.Println("==============================")

	session := &cliSession{client: client, reader: bufio.NewReader(os.Stdin)}
	session.run()
	return nil
}

type cliSession struct {
	client      *rpcclient.Client
	reader      *bufio.Reader
	monitorStop chan struct{}
}

func (s *cliSession) run() {
	for {
		if s.monitorStop != nil {
			fmt.Println("\nMonitoring for updates. Press Enter to return to menu.")
			s.reader.ReadString('\n')
			close(s.monitorStop)
			s.monitorStop = nil
			continue
		}

		fmt.Println("\nAvailable commands:")
		fmt.Println("1. query - Query facility availability")
		fmt.Println("2. book - Book a facility")
		fmt.Println("3. change - Change an existing booking")
		fmt.Println("4. monitor - Monitor facility availability")
		fmt.Println("5. extend - Extend a booking")
		fmt.Println("6. last - Get last booking time for a facility")
		fmt.Println("7. exit - Exit the client")
		fmt.Print("\nEnter command: ")

		input, _ := s.reader.ReadString('\n')
		switch strings.TrimSpace(input) {
		case "1", "query":
			s.handleQueryAvailability()
		case "2", "book":
			s.handleBookFacility()
		case "3", "change":
			s.handleChangeBooking()
		case "4", "monitor":
			s.handleMonitorFacility()
		case "5", "extend":
			s.handleExtendBooking()
		case "6", "last":
			s.handleGetLastBookingTime()
		case "7", "exit":
			fmt.Println("Exiting client.")
			return
		default:
			fmt.Println("Unknown command. Please try again.")
		}
	}
}

func (s *cliSession) readLine(prompt string) string {
	fmt.Print(prompt)
	line, _ := s.reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func (s *cliSession) readUint32(prompt string) (uint32, error) {
	v, err := strconv.ParseUint(s.readLine(prompt), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	return uint32(v), nil
}

func (s *cliSession) readInt32(prompt string) (int32, error) {
	v, err := strconv.ParseInt(s.readLine(prompt), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	return int32(v), nil
}

func (s *cliSession) handleQueryAvailability() {
	name := s.readLine("Enter facility name: ")

	numDays, err := strconv.Atoi(s.readLine("Enter number of days to check: "))
	if err != nil || numDays <= 0 {
		fmt.Println("Error: invalid number of days")
		return
	}
	days := make([]uint32, 0, numDays)
	for i := 0; i < numDays; i++ {
		d, err := s.readUint32(fmt.Sprintf("Day offset %d (0=today): ", i+1))
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		days = append(days, d)
	}

	payload, err := protocol.EncodeQueryAvailabilityRequest(protocol.QueryAvailabilityRequest{FacilityName: name, Days: days})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	resp, err := s.client.Send(protocol.MsgQueryAvailability, payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	if resp.Status != protocol.StatusSuccess {
		msg, _ := protocol.DecodeMessageBody(resp.Body)
		fmt.Println("Query failed:", msg)
		return
	}
	body, err := protocol.DecodeQueryAvailabilityResponse(resp.Body)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("\nAvailable slots:")
	for _, slot := range body.Slots {
		fmt.Printf("  %s - %s\n", formatUnix(slot.Start), formatUnix(slot.End))
	}
}

func (s *cliSession) handleBookFacility() {
	name := s.readLine("Enter facility name: ")
	start, err := s.readUint32("Enter start time (unix seconds): ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	end, err := s.readUint32("Enter end time (unix seconds): ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	payload, err := protocol.EncodeBookFacilityRequest(protocol.BookFacilityRequest{FacilityName: name, Start: start, End: end})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	resp, err := s.client.Send(protocol.MsgBookFacility, payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	if resp.Status != protocol.StatusSuccess {
		msg, _ := protocol.DecodeMessageBody(resp.Body)
		fmt.Println("\nBooking failed!", msg)
		return
	}
	body, err := protocol.DecodeBookFacilityResponse(resp.Body)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("\nBooking successful! Booking ID: %d\n", body.BookingID)
}

func (s *cliSession) handleChangeBooking() {
	id, err := s.readUint32("Enter Booking ID: ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	offset, err := s.readInt32("Enter offset in minutes (positive to postpone, negative to bring forward): ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	payload, err := protocol.EncodeChangeBookingRequest(protocol.ChangeBookingRequest{BookingID: id, OffsetMinutes: offset})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	resp, err := s.client.Send(protocol.MsgChangeBooking, payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	msg, _ := protocol.DecodeMessageBody(resp.Body)
	if resp.Status == protocol.StatusSuccess {
		fmt.Println("\nBooking changed successfully!", msg)
	} else {
		fmt.Println("\nFailed to change booking!", msg)
	}
}

func (s *cliSession) handleMonitorFacility() {
	name := s.readLine("Enter facility name: ")
	duration, err := s.readUint32("Enter duration in seconds: ")
	if err != nil || duration == 0 {
		fmt.Println("Error: invalid duration")
		return
	}

	payload, err := protocol.EncodeMonitorFacilityRequest(protocol.MonitorFacilityRequest{FacilityName: name, DurationSeconds: duration})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	resp, err := s.client.Send(protocol.MsgMonitorFacility, payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	msg, _ := protocol.DecodeMessageBody(resp.Body)
	if resp.Status != protocol.StatusSuccess {
		fmt.Println("\nFailed to start monitoring!", msg)
		return
	}

	fmt.Println("\nMonitoring started successfully!", msg)
	fmt.Println("Waiting for updates (press Enter to stop)...")

	s.monitorStop = make(chan struct{})
	notifications := s.client.ReceiveNotifications(s.monitorStop)
	go func() {
		for n := range notifications {
			if n.Err != nil {
				continue
			}
			fmt.Printf("\n%s\n", n.Payload.Message)
		}
	}()
}

func (s *cliSession) handleExtendBooking() {
	id, err := s.readUint32("Enter Booking ID: ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	minutes, err := s.readUint32("Enter minutes to extend: ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	payload, err := protocol.EncodeExtendBookingRequest(protocol.ExtendBookingRequest{BookingID: id, Minutes: minutes})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	resp, err := s.client.Send(protocol.MsgExtendBooking, payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	if resp.Status != protocol.StatusSuccess {
		msg, _ := protocol.DecodeMessageBody(resp.Body)
		fmt.Println("\nFailed to extend booking!", msg)
		return
	}
	body, err := protocol.DecodeExtendBookingResponse(resp.Body)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("\nBooking extended! New end time: %s\n", formatUnix(body.NewEnd))
}

func (s *cliSession) handleGetLastBookingTime() {
	name := s.readLine("Enter facility name: ")

	payload, err := protocol.EncodeGetLastBookingTimeRequest(protocol.GetLastBookingTimeRequest{FacilityName: name})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	resp, err := s.client.Send(protocol.MsgGetLastBookingTime, payload)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	if resp.Status != protocol.StatusSuccess {
		msg, _ := protocol.DecodeMessageBody(resp.Body)
		fmt.Println("Error:", msg)
		return
	}
	body, err := protocol.DecodeGetLastBookingTimeResponse(resp.Body)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("\n%s: %s\n", body.Message, formatUnix(body.LastEnd))
}

func formatUnix(sec uint32) string {
	return time.Unix(int64(sec), 0).Format(time.RFC3339)
}
