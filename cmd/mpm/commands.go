package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mpm/internal/secrettree"
)

// newSessionCmd builds the per-line command tree used by the REPL. Every
// RunE below reads its own flags/args, then either calls the matching
// Database method or, for tree navigation and secret editing, works on the
// database's secret tree directly.
func (a *app) newSessionCmd() *cobra.Command {
	root := &cobra.Command{Use: "mpm", SilenceUsage: true, SilenceErrors: true}

	root.AddCommand(a.cmdInit(), a.cmdLoad(), a.cmdTry(), a.cmdSave(),
		a.cmdHolder(), a.cmdPwd(), a.cmdCd(), a.cmdLs(),
		a.cmdNewFolder(), a.cmdNewSecret(), a.cmdDelete(), a.cmdSecretEdit(),
		a.cmdShowHolders(), a.cmdShowSecret(), a.cmdCheck(), a.cmdQuit())
	return root
}

func (a *app) cmdInit() *cobra.Command {
	var file string
	var commonParts, secretParts int
	c := &cobra.Command{
		Use:   "init",
		Short: "create a new vault in memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = a.cfg.VaultPath
			}
			if commonParts == 0 {
				commonParts = a.cfg.CommonThreshold
			}
			if secretParts == 0 {
				secretParts = a.cfg.SecretThreshold
			}
			if err := a.db.CreateNew(file, commonParts, secretParts); err != nil {
				return err
			}
			a.cons.Printf("vault initialised, status=%s\n", a.db.Status)
			return nil
		},
	}
	c.Flags().StringVar(&file, "file", "", "vault file path")
	c.Flags().IntVar(&commonParts, "common-parts", 0, "common tier threshold (default 2)")
	c.Flags().IntVar(&secretParts, "secret-parts", 0, "secret tier threshold (default 3)")
	return c
}

func (a *app) cmdLoad() *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE",
		Short: "attach a vault file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.db.LoadFile(args[0]); err != nil {
				return err
			}
			a.cons.Printf("vault loaded, status=%s\n", a.db.Status)
			return nil
		},
	}
}

func (a *app) cmdTry() *cobra.Command {
	return &cobra.Command{
		Use:   "try NICK",
		Short: "authenticate as a holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.cons.ReadSecret("password: ")
			if err != nil {
				return err
			}
			if err := a.db.Try(args[0], password); err != nil {
				return err
			}
			a.cons.Printf("try succeeded, status=%s\n", a.db.Status)
			return nil
		},
	}
}

func (a *app) cmdSave() *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "save [FILE]",
		Short: "persist the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				file = args[0]
			}
			if err := a.db.Save(file); err != nil {
				return err
			}
			a.cons.Printf("saved to %s\n", a.db.Filename)
			return nil
		},
	}
	return c
}

func (a *app) cmdHolder() *cobra.Command {
	root := &cobra.Command{Use: "holder", Short: "holder administration"}

	var commonParts, secretParts int
	var email string
	newCmd := &cobra.Command{
		Use:  "new NICK",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.cons.ReadSecret("holder password: ")
			if err != nil {
				return err
			}
			if commonParts == 0 {
				commonParts = 1
			}
			if secretParts == 0 {
				secretParts = 1
			}
			h, err := a.db.NewHolder(args[0], email, password, commonParts, secretParts)
			if err != nil {
				return err
			}
			a.cons.Printf("holder %q created (id=%d)\n", h.Nickname, h.ID)
			return nil
		},
	}
	newCmd.Flags().IntVar(&commonParts, "common-parts", 0, "common tier parts")
	newCmd.Flags().IntVar(&secretParts, "secret-parts", 0, "secret tier parts")
	newCmd.Flags().StringVar(&email, "email", "", "holder email")

	deleteCmd := &cobra.Command{
		Use:  "delete NICK",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.db.DeleteHolder(args[0]); err != nil {
				return err
			}
			a.cons.Printf("holder %q deleted\n", args[0])
			return nil
		},
	}

	var editCommon, editSecret int
	var editEmail string
	var editPassword bool
	editCmd := &cobra.Command{
		Use:  "edit NICK",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw *string
			if editPassword {
				p, err := a.cons.ReadSecret("new password: ")
				if err != nil {
					return err
				}
				pw = &p
			}
			var cp, sp *int
			if cmd.Flags().Changed("common-parts") {
				cp = &editCommon
			}
			if cmd.Flags().Changed("secret-parts") {
				sp = &editSecret
			}
			if err := a.db.EditHolder(args[0], pw, cp, sp); err != nil {
				return err
			}
			if cmd.Flags().Changed("email") {
				for _, h := range a.db.Holders {
					if h.Nickname == args[0] {
						h.Email = editEmail
					}
				}
				a.db.MarkSecretChanged()
			}
			a.cons.Printf("holder %q updated\n", args[0])
			return nil
		},
	}
	editCmd.Flags().IntVar(&editCommon, "common-parts", 0, "new common tier parts")
	editCmd.Flags().IntVar(&editSecret, "secret-parts", 0, "new secret tier parts")
	editCmd.Flags().StringVar(&editEmail, "email", "", "new email")
	editCmd.Flags().BoolVar(&editPassword, "password", false, "prompt for a new password")

	root.AddCommand(newCmd, deleteCmd, editCmd)
	return root
}

func (a *app) cmdPwd() *cobra.Command {
	return &cobra.Command{
		Use:   "pwd",
		Short: "print the current folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.db.CurrentFolder == nil {
				return fmt.Errorf("no folder open")
			}
			a.cons.Printf("%s (id=%d)\n", a.db.CurrentFolder.Title, a.db.CurrentFolder.ID)
			return nil
		},
	}
}

func (a *app) cmdCd() *cobra.Command {
	return &cobra.Command{
		Use:   "cd ID",
		Short: "change the current folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			f, _ := secrettree.Find(a.db.RootFolder, id)
			if f == nil {
				return fmt.Errorf("no such folder id %d", id)
			}
			a.db.CurrentFolder = f
			return nil
		},
	}
}

func (a *app) cmdLs() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "list the current folder's contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.db.CurrentFolder == nil {
				return fmt.Errorf("no folder open")
			}
			for _, sub := range a.db.CurrentFolder.SubFolders {
				a.cons.Printf("d %6d  %s\n", sub.ID, sub.Title)
			}
			for _, it := range a.db.CurrentFolder.Items {
				a.cons.Printf("- %6d  %s\n", it.ID, it.Title)
			}
			return nil
		},
	}
}

func (a *app) cmdNewFolder() *cobra.Command {
	return &cobra.Command{
		Use:   "new-folder TITLE",
		Short: "create a subfolder in the current folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := secrettree.AllocateID(a.db.RootFolder)
			if err != nil {
				return err
			}
			sub := &secrettree.Folder{Title: args[0], ID: id}
			a.db.CurrentFolder.SubFolders = append(a.db.CurrentFolder.SubFolders, sub)
			a.db.MarkSecretChanged()
			a.cons.Printf("folder %q created (id=%d)\n", sub.Title, sub.ID)
			return nil
		},
	}
}

func (a *app) cmdNewSecret() *cobra.Command {
	return &cobra.Command{
		Use:   "new-secret TITLE",
		Short: "create a secret item in the current folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := secrettree.AllocateID(a.db.RootFolder)
			if err != nil {
				return err
			}
			item := &secrettree.Item{Title: args[0], ID: id}
			if err := a.cp.RandomFill(item.AesIV[:]); err != nil {
				return err
			}
			a.db.CurrentFolder.Items = append(a.db.CurrentFolder.Items, item)
			a.db.MarkSecretChanged()
			a.cons.Printf("secret %q created (id=%d)\n", item.Title, item.ID)
			return nil
		},
	}
}

func (a *app) cmdDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "delete a folder or secret by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			if err := secrettree.DeleteByID(a.db.RootFolder, id); err != nil {
				return err
			}
			a.db.MarkSecretChanged()
			return nil
		},
	}
}

func (a *app) cmdSecretEdit() *cobra.Command {
	var field, value string
	var deleteField bool
	var title string
	c := &cobra.Command{
		Use:   "edit-secret ID",
		Short: "edit a secret item's title or a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			_, item := secrettree.Find(a.db.RootFolder, id)
			if item == nil {
				return fmt.Errorf("no such secret id %d", id)
			}
			if title != "" {
				item.Title = title
			}
			if deleteField {
				idx := -1
				for i, f := range item.Fields {
					if f.Name == field {
						idx = i
						break
					}
				}
				if idx < 0 {
					return fmt.Errorf("no such field %q", field)
				}
				item.Fields = append(item.Fields[:idx], item.Fields[idx+1:]...)
			} else if field != "" {
				updated := false
				for i := range item.Fields {
					if item.Fields[i].Name == field {
						item.Fields[i].Value = value
						updated = true
						break
					}
				}
				if !updated {
					item.Fields = append(item.Fields, secrettree.Field{Name: field, Value: value})
				}
			}
			a.db.MarkSecretChanged()
			a.cons.Printf("secret %d updated\n", id)
			return nil
		},
	}
	c.Flags().StringVar(&field, "field", "", "field name")
	c.Flags().StringVar(&value, "value", "", "field value")
	c.Flags().StringVar(&title, "title", "", "new title")
	c.Flags().BoolVar(&deleteField, "delete-field", false, "remove the named field instead of setting it")
	return c
}

func (a *app) cmdShowHolders() *cobra.Command {
	return &cobra.Command{
		Use:   "show-holders",
		Short: "list known holders",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, h := range a.db.Holders {
				a.cons.Printf("%-16s id=%-4d status=%-6v common=%d secret=%d\n",
					h.Nickname, h.ID, h.Status, h.CommonNbParts, h.SecretNbParts)
			}
			return nil
		},
	}
}

func (a *app) cmdShowSecret() *cobra.Command {
	return &cobra.Command{
		Use:   "show-secret ID",
		Short: "print a secret item's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			_, item := secrettree.Find(a.db.RootFolder, id)
			if item == nil {
				return fmt.Errorf("no such secret id %d", id)
			}
			a.cons.Printf("%s (id=%d)\n", item.Title, item.ID)
			for _, f := range item.Fields {
				shown := f.Value
				if f.Secret {
					shown = "********"
				}
				a.cons.Printf("  %s = %s\n", f.Name, shown)
			}
			return nil
		},
	}
}

func (a *app) cmdCheck() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "run the distribution/consistency checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.db.Check()
			if err != nil {
				return err
			}
			a.cons.Printf("common: %d/%d  secret: %d/%d  conflicts: %d  ok=%v\n",
				r.CommonDistributed, r.CommonThreshold, r.SecretDistributed, r.SecretThreshold,
				len(r.SlotConflicts), r.OK())
			return nil
		},
	}
}

func (a *app) cmdQuit() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "close the vault and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.db.Close()
			a.quit = true
			return nil
		},
	}
}
