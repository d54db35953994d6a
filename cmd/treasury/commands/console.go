package commands

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/pineappleswan/treasury/internal/bytesize"
	"github.com/pineappleswan/treasury/internal/cliout"
	"github.com/pineappleswan/treasury/pkg/blob"
	"github.com/pineappleswan/treasury/pkg/catalog"
	"github.com/pineappleswan/treasury/pkg/lifecycle"
)

const consoleHelp = `Commands:
  help                   show this message
  newuser <quota>        reserve an account, e.g. "newuser 10gib"
  viewusers               list claimed accounts
  viewunclaimedusers      list pending reservations
  exit                    shut down the server`

// runAdminConsole reads line-oriented commands from stdin until EOF or
// "exit". "exit" triggers shutdown through requestShutdown rather than
// exiting the process itself, so it goes through the same graceful
// teardown (catalog close, session/upload sweeper stop) as SIGINT/SIGTERM,
// which serveCmd's main select loop owns.
func runAdminConsole(sys *lifecycle.System, requestShutdown func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "help":
			fmt.Println(consoleHelp)
		case "exit":
			requestShutdown()
			return
		case "newuser":
			handleNewUser(sys, fields)
		case "viewusers":
			handleViewUsers(sys)
		case "viewunclaimedusers":
			handleViewUnclaimedUsers(sys)
		default:
			fmt.Printf("unknown command %q, try \"help\"\n", fields[0])
		}
	}
}

func handleNewUser(sys *lifecycle.System, fields []string) {
	if len(fields) != 2 {
		fmt.Println(`usage: newuser <quota>, e.g. "newuser 10gib"`)
		return
	}

	quota, err := bytesize.ParseByteSize(fields[1])
	if err != nil {
		fmt.Printf("invalid quota: %v\n", err)
		return
	}

	salts, err := generateReservationSalts()
	if err != nil {
		fmt.Printf("failed to generate salts: %v\n", err)
		return
	}

	code, err := sys.Catalog.ReserveAccount(uint64(quota), salts)
	if err != nil {
		fmt.Printf("failed to reserve account: %v\n", err)
		return
	}

	fmt.Printf("claim code: %s (quota %s)\n", code, quota.String())
}

func handleViewUsers(sys *lifecycle.System) {
	users, err := sys.Catalog.ListUsers()
	if err != nil {
		fmt.Printf("failed to list users: %v\n", err)
		return
	}
	if len(users) == 0 {
		fmt.Println("(no claimed accounts)")
		return
	}
	table := cliout.NewTableData("USERNAME", "QUOTA")
	for _, user := range users {
		table.AddRow(user.Username, bytesize.ByteSize(user.StorageQuotaBytes).String())
	}
	cliout.PrintTable(os.Stdout, table)
}

func handleViewUnclaimedUsers(sys *lifecycle.System) {
	reservations, err := sys.Catalog.ListReservations()
	if err != nil {
		fmt.Printf("failed to list reservations: %v\n", err)
		return
	}
	if len(reservations) == 0 {
		fmt.Println("(no pending reservations)")
		return
	}
	table := cliout.NewTableData("CLAIM CODE", "QUOTA")
	for _, reservation := range reservations {
		table.AddRow(reservation.ClaimCode, bytesize.ByteSize(reservation.StorageQuotaBytes).String())
	}
	cliout.PrintTable(os.Stdout, table)
}

func generateReservationSalts() (catalog.ReservationSalts, error) {
	publicSalt, err := randomSalt()
	if err != nil {
		return catalog.ReservationSalts{}, err
	}
	privateSalt, err := randomSalt()
	if err != nil {
		return catalog.ReservationSalts{}, err
	}
	masterKeySalt, err := randomSalt()
	if err != nil {
		return catalog.ReservationSalts{}, err
	}
	return catalog.ReservationSalts{
		PasswordPublicSalt:  publicSalt,
		PasswordPrivateSalt: privateSalt,
		MasterKeySalt:       masterKeySalt,
	}, nil
}

func randomSalt() ([]byte, error) {
	salt := make([]byte, blob.SaltByteLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
